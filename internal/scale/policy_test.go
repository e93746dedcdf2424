package scale

import "testing"

func TestComputeTarget(t *testing.T) {
	tests := []struct {
		name       string
		srcW, srcH int
		percentage int
		upscale    bool
		wantW      int
		wantH      int
		wantFilter Filter
	}{
		{
			name: "downscale half",
			srcW: 200, srcH: 100,
			percentage: 50,
			wantW:      100, wantH: 50,
			wantFilter: AreaAverage,
		},
		{
			name: "upscale adds on top of full size",
			srcW: 200, srcH: 100,
			percentage: 50,
			upscale:    true,
			wantW:      300, wantH: 150,
			wantFilter: Cubic,
		},
		{
			name: "zero percentage clamps to one percent",
			srcW: 200, srcH: 100,
			percentage: 0,
			wantW:      2, wantH: 1,
			wantFilter: AreaAverage,
		},
		{
			name: "tiny source never collapses to zero",
			srcW: 10, srcH: 10,
			percentage: 1,
			wantW:      1, wantH: 1,
			wantFilter: AreaAverage,
		},
		{
			name: "double without upscale flag",
			srcW: 10, srcH: 10,
			percentage: 200,
			wantW:      20, wantH: 20,
			wantFilter: AreaAverage,
		},
		{
			name: "dimensions floor",
			srcW: 3, srcH: 3,
			percentage: 50,
			wantW:      1, wantH: 1,
			wantFilter: AreaAverage,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, h, f := ComputeTarget(tc.srcW, tc.srcH, tc.percentage, tc.upscale)
			if w != tc.wantW || h != tc.wantH {
				t.Fatalf("ComputeTarget() = %dx%d, want %dx%d", w, h, tc.wantW, tc.wantH)
			}
			if f != tc.wantFilter {
				t.Fatalf("ComputeTarget() filter = %q, want %q", f, tc.wantFilter)
			}
		})
	}
}

func TestComputeTargetDeterministic(t *testing.T) {
	w1, h1, f1 := ComputeTarget(1920, 1080, 75, true)
	for i := 0; i < 10; i++ {
		w2, h2, f2 := ComputeTarget(1920, 1080, 75, true)
		if w1 != w2 || h1 != h2 || f1 != f2 {
			t.Fatalf("ComputeTarget not deterministic: got %dx%d/%q then %dx%d/%q", w1, h1, f1, w2, h2, f2)
		}
	}
}

package handler

// ResizeParams are the non-file form fields of POST /api/resize.
type ResizeParams struct {
	Percentage int  `validate:"required,gt=0"`
	Upscale    bool
}

type resizeResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

type bannerResponse struct {
	Message  string `json:"message"`
	Datetime string `json:"datetime"`
}

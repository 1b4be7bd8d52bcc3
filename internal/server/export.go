package server

import (
	"github.com/joseph-ayodele/tms-reconciler/internal/entity"
	"github.com/joseph-ayodele/tms-reconciler/internal/reconcile"
)

// ExportResponse carries a rendered workbook. Xlsx is base64 encoded on the wire.
type ExportResponse struct {
	FileName    string                   `json:"fileName"`
	ContentType string                   `json:"contentType"`
	Xlsx        []byte                   `json:"xlsx"`
	Result      *entity.ValidationResult `json:"result"`
}

func newExportResponse(out *reconcile.Export) *ExportResponse {
	return &ExportResponse{
		FileName:    out.FileName,
		ContentType: out.ContentType,
		Xlsx:        out.Data,
		Result:      out.Result,
	}
}

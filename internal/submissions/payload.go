package submissions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"agentcv-backend/internal/endpoints"
	"agentcv-backend/internal/shared/util"
)

const defaultResumeName = "cv.pdf"

type jsonPayload struct {
	CVURL          string  `json:"cv_url"`
	JobDescription *string `json:"job_description"`
	JobLink        *string `json:"job_link"`
	Language       string  `json:"language"`
	CVSource       string  `json:"cv_source"`
	JobSource      string  `json:"job_source"`
}

// buildPayload encodes req for shape and returns the body and its content type.
func buildPayload(shape endpoints.PayloadShape, req Request, resumeSrc endpoints.ResumeSource, jobSrc endpoints.JobSource) (io.Reader, string, error) {
	switch shape {
	case endpoints.ShapeMultipart:
		return buildMultipart(req, resumeSrc, jobSrc)
	case endpoints.ShapeJSON:
		return buildJSON(req, resumeSrc, jobSrc)
	default:
		return nil, "", fmt.Errorf("%w: unknown payload shape %q", ErrConfiguration, shape)
	}
}

func buildMultipart(req Request, resumeSrc endpoints.ResumeSource, jobSrc endpoints.JobSource) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name, err := util.SanitizeFileName(req.ResumeFile.Name)
	if err != nil {
		name = defaultResumeName
	}
	contentType := strings.TrimSpace(req.ResumeFile.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="cv_file"; filename=%q`, name))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create cv_file part: %w", err)
	}
	if _, err := part.Write(req.ResumeFile.Data); err != nil {
		return nil, "", fmt.Errorf("write cv_file part: %w", err)
	}

	fields := [][2]string{}
	if text := strings.TrimSpace(req.JobText); text != "" && jobSrc == endpoints.JobText {
		fields = append(fields, [2]string{"job_description", text})
	}
	if link := strings.TrimSpace(req.JobLink); link != "" {
		fields = append(fields, [2]string{"job_link", link})
	}
	fields = append(fields,
		[2]string{"language", string(req.locale())},
		[2]string{"cv_source", string(resumeSrc)},
		[2]string{"job_source", string(jobSrc)},
	)
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write %s: %w", f[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func buildJSON(req Request, resumeSrc endpoints.ResumeSource, jobSrc endpoints.JobSource) (io.Reader, string, error) {
	p := jsonPayload{
		CVURL:     strings.TrimSpace(req.DocumentURL),
		Language:  string(req.locale()),
		CVSource:  string(resumeSrc),
		JobSource: string(jobSrc),
	}
	if text := strings.TrimSpace(req.JobText); text != "" && jobSrc == endpoints.JobText {
		p.JobDescription = &text
	}
	if link := strings.TrimSpace(req.JobLink); link != "" {
		p.JobLink = &link
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, "", fmt.Errorf("encode payload: %w", err)
	}
	return bytes.NewReader(raw), "application/json", nil
}

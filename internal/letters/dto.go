package letters

import "time"

// JobInfoDTO is the wire form of JobInfo.
type JobInfoDTO struct {
	FileTitle      *string `json:"fileTitle"`
	PositionTitle  *string `json:"positionTitle"`
	CompanyName    *string `json:"companyName"`
	CompanyAddress *string `json:"companyAddress"`
	HiringManager  *string `json:"hiringManager"`
}

// LetterResponse is the wire form of a Letter.
type LetterResponse struct {
	ID           string     `json:"id"`
	TemplateID   *string    `json:"templateId"`
	ContentLatex string     `json:"contentLatex"`
	Date         *string    `json:"date"`
	JobInfo      JobInfoDTO `json:"jobInfo"`
	SourceKey    *string    `json:"sourceKey,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// UploadRequest creates a letter from pasted LaTeX. Body is accepted as an alias.
type UploadRequest struct {
	ContentLatex string `json:"contentLatex"`
	Body         string `json:"body,omitempty"`
}

// UpdateRequest is a partial update; absent fields are left unchanged.
type UpdateRequest struct {
	ContentLatex *string     `json:"contentLatex,omitempty"`
	Body         *string     `json:"body,omitempty"`
	TemplateID   *string     `json:"templateId,omitempty"`
	Date         *string     `json:"date,omitempty"`
	JobInfo      *JobInfoDTO `json:"jobInfo,omitempty"`
}

// ToResponse converts a Letter to its wire form.
func ToResponse(l Letter) LetterResponse {
	return LetterResponse{
		ID:           l.ID,
		TemplateID:   l.TemplateID,
		ContentLatex: l.ContentLatex,
		Date:         l.Date,
		JobInfo: JobInfoDTO{
			FileTitle:      l.JobInfo.FileTitle,
			PositionTitle:  l.JobInfo.PositionTitle,
			CompanyName:    l.JobInfo.CompanyName,
			CompanyAddress: l.JobInfo.CompanyAddress,
			HiringManager:  l.JobInfo.HiringManager,
		},
		SourceKey: l.SourceKey,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}

// Letter converts the wire form back to a Letter. UserID is not carried.
func (r LetterResponse) Letter() Letter {
	return Letter{
		ID:           r.ID,
		TemplateID:   r.TemplateID,
		ContentLatex: r.ContentLatex,
		Date:         r.Date,
		JobInfo: JobInfo{
			FileTitle:      r.JobInfo.FileTitle,
			PositionTitle:  r.JobInfo.PositionTitle,
			CompanyName:    r.JobInfo.CompanyName,
			CompanyAddress: r.JobInfo.CompanyAddress,
			HiringManager:  r.JobInfo.HiringManager,
		},
		SourceKey: r.SourceKey,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// NewUpdateRequest builds the wire form of a Patch.
func NewUpdateRequest(p Patch) UpdateRequest {
	req := UpdateRequest{
		ContentLatex: p.ContentLatex,
		TemplateID:   p.TemplateID,
		Date:         p.Date,
	}
	if p.FileTitle != nil || p.PositionTitle != nil || p.CompanyName != nil || p.CompanyAddress != nil || p.HiringManager != nil {
		req.JobInfo = &JobInfoDTO{
			FileTitle:      p.FileTitle,
			PositionTitle:  p.PositionTitle,
			CompanyName:    p.CompanyName,
			CompanyAddress: p.CompanyAddress,
			HiringManager:  p.HiringManager,
		}
	}
	return req
}

// Patch converts the request to a Patch.
func (r UpdateRequest) Patch() Patch {
	p := Patch{
		ContentLatex: r.ContentLatex,
		TemplateID:   r.TemplateID,
		Date:         r.Date,
	}
	if p.ContentLatex == nil {
		p.ContentLatex = r.Body
	}
	if r.JobInfo != nil {
		p.FileTitle = r.JobInfo.FileTitle
		p.PositionTitle = r.JobInfo.PositionTitle
		p.CompanyName = r.JobInfo.CompanyName
		p.CompanyAddress = r.JobInfo.CompanyAddress
		p.HiringManager = r.JobInfo.HiringManager
	}
	return p
}

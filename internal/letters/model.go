package letters

import "time"

// JobInfo is display metadata derived from a letter body. Nil means unknown.
type JobInfo struct {
	FileTitle      *string
	PositionTitle  *string
	CompanyName    *string
	CompanyAddress *string
	HiringManager  *string
}

// Letter is a LaTeX cover letter owned by a user.
type Letter struct {
	ID           string
	UserID       string
	TemplateID   *string
	ContentLatex string
	Date         *string
	JobInfo      JobInfo
	SourceKey    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Title returns the display title, falling back to the id.
func (l Letter) Title() string {
	if l.JobInfo.FileTitle != nil && *l.JobInfo.FileTitle != "" {
		return *l.JobInfo.FileTitle
	}
	return l.ID
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	ContentLatex   *string
	TemplateID     *string
	Date           *string
	FileTitle      *string
	PositionTitle  *string
	CompanyName    *string
	CompanyAddress *string
	HiringManager  *string
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.ContentLatex == nil && p.TemplateID == nil && p.Date == nil &&
		p.FileTitle == nil && p.PositionTitle == nil && p.CompanyName == nil &&
		p.CompanyAddress == nil && p.HiringManager == nil
}

// Apply merges p into l.
func (l Letter) Apply(p Patch) Letter {
	if p.ContentLatex != nil {
		l.ContentLatex = *p.ContentLatex
	}
	mergeString(&l.TemplateID, p.TemplateID)
	mergeString(&l.Date, p.Date)
	mergeString(&l.JobInfo.FileTitle, p.FileTitle)
	mergeString(&l.JobInfo.PositionTitle, p.PositionTitle)
	mergeString(&l.JobInfo.CompanyName, p.CompanyName)
	mergeString(&l.JobInfo.CompanyAddress, p.CompanyAddress)
	mergeString(&l.JobInfo.HiringManager, p.HiringManager)
	return l
}

func mergeString(dst **string, src *string) {
	if src == nil {
		return
	}
	v := *src
	*dst = &v
}

package waitlist

import (
	"github.com/akeren/launch-waitlist/internal/models"
	"github.com/akeren/launch-waitlist/pkg/constants"
)

type RequestCodeRequest struct {
	Email string `json:"email" binding:"required,max=255"`
}

type VerifyCodeRequest struct {
	Email string `json:"email" binding:"required,max=255"`
	Code  string `json:"code" binding:"required,len=6"`
	Name  string `json:"name" binding:"omitempty,max=255"`
	Phone string `json:"phone" binding:"omitempty,max=50"`
}

// UpdateEntryRequest is an admin patch. Absent and null fields are left untouched.
type UpdateEntryRequest struct {
	Name     *string `json:"name"`
	Phone    *string `json:"phone"`
	IsOG     *bool   `json:"isOG"`
	Verified *bool   `json:"verified"`
}

func (r *UpdateEntryRequest) IsEmpty() bool {
	return r.Name == nil && r.Phone == nil && r.IsOG == nil && r.Verified == nil
}

// ListQuery selects one page of entries. Nil filters match everything.
type ListQuery struct {
	Page     int
	Limit    int
	Verified *bool
	IsOG     *bool
}

func (q ListQuery) normalized() ListQuery {
	if q.Page < 1 {
		q.Page = constants.DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = constants.DefaultPageSize
	}
	if q.Limit > constants.MaxPageSize {
		q.Limit = constants.MaxPageSize
	}
	return q
}

func (q ListQuery) offset() int {
	return (q.Page - 1) * q.Limit
}

type WaitlistEntryResponse struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Name      *string `json:"name"`
	Phone     *string `json:"phone"`
	IsOG      bool    `json:"isOG"`
	Verified  bool    `json:"verified"`
	Source    string  `json:"source"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
}

type EntryEnvelope struct {
	Entry WaitlistEntryResponse `json:"entry"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

type ListEntriesResponse struct {
	Entries    []WaitlistEntryResponse `json:"entries"`
	Pagination Pagination              `json:"pagination"`
}

type StatsResponse struct {
	Total      int64 `json:"total"`
	Verified   int64 `json:"verified"`
	OGCount    int64 `json:"ogCount"`
	RecentWeek int64 `json:"recentWeek"`
	Pending    int64 `json:"pending"`
}

// ========================================
// Mappers
// ========================================

func ToWaitlistEntryResponse(entry *models.WaitlistEntry) WaitlistEntryResponse {
	if entry == nil {
		return WaitlistEntryResponse{}
	}
	return WaitlistEntryResponse{
		ID:        entry.ID,
		Email:     entry.Email,
		Name:      entry.Name,
		Phone:     entry.Phone,
		IsOG:      entry.IsOG,
		Verified:  entry.Verified,
		Source:    entry.Source,
		CreatedAt: entry.CreatedAt.UTC().Format(constants.RFC3339DateTimeFormat),
		UpdatedAt: entry.UpdatedAt.UTC().Format(constants.RFC3339DateTimeFormat),
	}
}

func pagesFor(total int64, limit int) int64 {
	if limit <= 0 {
		return 0
	}
	l := int64(limit)
	return (total + l - 1) / l
}

package service

import "github.com/noah-isme/gema-assess-api/internal/models"

// ResolutionSource names where a resumed submission came from.
type ResolutionSource string

// Resolution sources, highest priority first.
const (
	SourceAuthoritative ResolutionSource = "authoritative"
	SourceURL           ResolutionSource = "url"
	SourceCache         ResolutionSource = "cache"
	SourceNew           ResolutionSource = "new"
)

// ResolutionSources carries the candidate submissions gathered for one
// page load. Any of them may be nil.
type ResolutionSources struct {
	// UserID is the authenticated respondent, empty for public respondents.
	UserID        string
	Authoritative *models.Submission
	FromURL       *models.Submission
	FromCache     *models.Submission
}

// Resolution is the outcome of reconciling the candidates.
type Resolution struct {
	Submission *models.Submission
	Source     ResolutionSource
}

// CreateNew reports whether no candidate survived and a submission must be created.
func (r Resolution) CreateNew() bool {
	return r.Submission == nil
}

// Reconcile picks the submission to resume for an assignment. The store
// lookup for an authenticated respondent always wins; URL and cached ids are
// only used when they point at a live submission of the same assignment that
// the caller may own. Invalid candidates are skipped silently.
func Reconcile(assignmentID string, sources ResolutionSources) Resolution {
	if sources.UserID != "" && usable(sources.Authoritative, assignmentID, sources.UserID) {
		return Resolution{Submission: sources.Authoritative, Source: SourceAuthoritative}
	}
	if usable(sources.FromURL, assignmentID, sources.UserID) {
		return Resolution{Submission: sources.FromURL, Source: SourceURL}
	}
	if usable(sources.FromCache, assignmentID, sources.UserID) {
		return Resolution{Submission: sources.FromCache, Source: SourceCache}
	}
	return Resolution{Source: SourceNew}
}

func usable(candidate *models.Submission, assignmentID, userID string) bool {
	if candidate == nil || candidate.ID == "" {
		return false
	}
	if !candidate.BelongsTo(assignmentID) || candidate.Superseded {
		return false
	}
	if candidate.IsPublic() {
		return true
	}
	return *candidate.UserID == userID
}

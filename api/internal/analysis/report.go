package analysis

type Status int

const (
	StatusOK Status = iota
	StatusQuota
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusQuota:
		return "quota_exceeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Report is the outcome of one caller invocation. Text is always
// displayable: the model answer, a quota advisory or a failure line.
type Report struct {
	Text    string
	Status  Status
	Model   string
	Notices []string
	Cached  bool
}

func (r Report) OK() bool            { return r.Status == StatusOK }
func (r Report) QuotaExceeded() bool { return r.Status == StatusQuota }

package enums

type ReportReason string

const (
	ReportReasonSpam          ReportReason = "spam"
	ReportReasonFake          ReportReason = "fake"
	ReportReasonHarassment    ReportReason = "harassment"
	ReportReasonInappropriate ReportReason = "inappropriate"
	ReportReasonUnderage      ReportReason = "underage"
	ReportReasonOther         ReportReason = "other"
)

func (r ReportReason) Valid() bool {
	switch r {
	case ReportReasonSpam, ReportReasonFake, ReportReasonHarassment,
		ReportReasonInappropriate, ReportReasonUnderage, ReportReasonOther:
		return true
	}
	return false
}

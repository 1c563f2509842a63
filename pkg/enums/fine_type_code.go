package enums

// Fine type codes seeded by the platform. Admins may define additional codes,
// but these ones carry extra rules: the code and calculation kind of a
// system-defined config are frozen after creation, and progressive-hourly
// calculation is only valid for the late submission code.
const (
	FineTypeLateSubmission    = "late_submission"
	FineTypeQualityIssue      = "quality_issue"
	FineTypePlagiarism        = "plagiarism"
	FineTypeInstructionBreach = "instruction_breach"
	FineTypeCancellation      = "order_cancellation"
)

var systemFineTypeCodes = []string{
	FineTypeLateSubmission,
	FineTypeQualityIssue,
	FineTypePlagiarism,
	FineTypeInstructionBreach,
	FineTypeCancellation,
}

// IsSystemFineTypeCode reports whether the code is platform-defined.
func IsSystemFineTypeCode(code string) bool {
	for _, candidate := range systemFineTypeCodes {
		if candidate == code {
			return true
		}
	}
	return false
}

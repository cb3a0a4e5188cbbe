package allocator

// Points awarded per award
const (
	BestDelegatePoints   = 5
	SpecialMentionPoints = 3
	VerbalMentionPoints  = 1
)

// ComputeExperiencePoints returns the delegate's aggregate experience points:
// the band's point value plus weighted award counts.
// Negative award counts count as zero, so the result is never negative.
func ComputeExperiencePoints(d Delegate) int {
	return d.Experience.Points() +
		nonNegative(d.BestDelegateAwards)*BestDelegatePoints +
		nonNegative(d.SpecialMentionAwards)*SpecialMentionPoints +
		nonNegative(d.VerbalMentionAwards)*VerbalMentionPoints
}

func nonNegative(n int) int {
	return max(n, 0)
}

package schedule

// ShouldRetry reports whether an extraction result is weak enough that the
// caller should ask the model again: no records, a record without an item
// name, or more than half of the records without a resolved price.
func ShouldRetry(records []Record) bool {
	if len(records) == 0 {
		return true
	}
	missing := 0
	for _, r := range records {
		if r.ItemName == "" {
			return true
		}
		if r.TotalPrice == nil {
			missing++
		}
	}
	return missing*2 > len(records)
}

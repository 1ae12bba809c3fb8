package delta

// UploadedFilesMetric aggregates byte and file counts for one reporting
// bucket. Combination is commutative, so workers can merge their
// contributions in any order.
type UploadedFilesMetric struct {
	InputSize  int64
	StoredSize int64
	Count      int64
}

func (m *UploadedFilesMetric) Add(other UploadedFilesMetric) {
	m.InputSize += other.InputSize
	m.StoredSize += other.StoredSize
	m.Count += other.Count
}

package terrain

// SelectionInfo is the precomputed per-level visibility-range table used by
// the distance subdivision policy and the load priority computation.
type SelectionInfo struct {
	ranges []float64
}

func NewSelectionInfo(opts Options) *SelectionInfo {
	numLODs := int(opts.MaxLOD) + 1
	ranges := make([]float64, numLODs)

	r := opts.VisibilityRange
	for lod := 0; lod < numLODs; lod++ {
		ranges[lod] = r
		r /= opts.RangeFactor
	}
	return &SelectionInfo{ranges: ranges}
}

func (si *SelectionInfo) NumLODs() int {
	return len(si.ranges)
}

// VisibilityRange returns the distance within which tiles of the given
// level are displayed. Levels beyond the table clamp to the deepest entry.
func (si *SelectionInfo) VisibilityRange(lod uint32) float64 {
	if int(lod) >= len(si.ranges) {
		return si.ranges[len(si.ranges)-1]
	}
	return si.ranges[lod]
}

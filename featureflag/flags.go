package featureflag

type Flag string

const (
	FlagDisableSessionState    Flag = "DISABLE_SESSION_STATE"
	FlagDisableTileEvents      Flag = "DISABLE_TILE_EVENTS"
	FlagDisableFrameSummaries  Flag = "DISABLE_FRAME_SUMMARIES"
	FlagDisableDormancySweeps  Flag = "DISABLE_DORMANCY_SWEEPS"
	FlagDisableNormalStitching Flag = "DISABLE_NORMAL_STITCHING"
)

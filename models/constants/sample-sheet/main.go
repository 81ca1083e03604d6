package sampleSheet

// Column names of the tab-separated sample sheet consumed by the
// demultiplexer, and of the read-count manifest it writes back.
const (
	SampleIdColumn = "SampleID"
	TagReadColumn  = "TagRead"
	NumReadsColumn = "NumReads"
)

// Sentinel rows appended to the demultiplexer's manifest. Neither
// describes a sample.
const (
	UnassignedTag = "Unassigned"
	TotalRow      = "Total"
)

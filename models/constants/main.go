package constants

/*
	Defines a set of base level
	constants and enums to be used
	throughout the workflow
	orchestrator and its
	associated services.
*/
type StageName string
type ArtifactFormat string

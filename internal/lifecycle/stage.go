package lifecycle

import "fmt"

// Stage identifies a step of the submission pipeline.
type Stage int

const (
	StageCredential Stage = iota
	StageValidate
	StageChainAppend
	StageEncode
	StageSend
	StageClassify
	StagePostProcess
)

var stageNames = [...]string{
	StageCredential:  "credential",
	StageValidate:    "validate",
	StageChainAppend: "chain-append",
	StageEncode:      "encode",
	StageSend:        "send",
	StageClassify:    "classify",
	StagePostProcess: "post-process",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// CanRun is the stage guard. Post-processing runs only on accepted records;
// every other stage requires Created, PendingSendAEAT or Failed.
func CanRun(state State, stage Stage) bool {
	if stage == StagePostProcess {
		return state == Valid
	}
	switch state {
	case Created, PendingSendAEAT, Failed:
		return true
	default:
		return false
	}
}

package models

import "strings"

// Canonical stage labels emitted by the pose classifiers.
const (
	StageDown   = "down"
	StageMiddle = "middle"
	StageUp     = "up"
	StagePush   = "push"
)

// stageLabelMap maps lowercased labels, including the Portuguese names used
// when the training footage was labelled, to their canonical form.
var stageLabelMap = map[string]string{
	"down":   StageDown,
	"middle": StageMiddle,
	"up":     StageUp,
	"push":   StagePush,

	// Sit-to-stand collection labels
	"sentado":   StageDown,
	"sentada":   StageDown,
	"transicao": StageMiddle,
	"transição": StageMiddle,
	"em_pe":     StageUp,
	"em pe":     StageUp,
	"em pé":     StageUp,
	"em_pé":     StageUp,

	// Plain Portuguese directions
	"baixo":    StageDown,
	"abaixado": StageDown,
	"meio":     StageMiddle,
	"cima":     StageUp,
	"alto":     StageUp,
	"empurrar": StagePush,
}

// NormalizeStageLabel maps a possibly-localized stage label to its canonical
// name. Returns the canonical name and true if recognized, or the original
// string and false if unknown.
func NormalizeStageLabel(raw string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := stageLabelMap[lower]; ok {
		return canonical, true
	}
	return raw, false
}

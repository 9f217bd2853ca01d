// Package feedback turns counter outcomes into the cue and message a client
// shows or plays to the player.
package feedback

import (
	"fmt"

	"github.com/meltforce/heromissions/internal/mission"
)

// Cue names a sound the client plays. The empty cue means stay silent.
type Cue string

const (
	CueNone       Cue = ""
	CueStart      Cue = "start"
	CueTransition Cue = "transition"
	CueSuccess    Cue = "success"
	CueComplete   Cue = "complete"
	CueError      Cue = "error"
)

// Feedback is what the player sees and hears after one classification.
// Speech is the narration recorded for the cue, for clients that read it
// aloud instead of playing the sound.
type Feedback struct {
	Cue     Cue    `json:"cue,omitempty"`
	Message string `json:"message,omitempty"`
	Speech  string `json:"speech,omitempty"`
}

var encouragements = []string{
	"Continue assim!",
	"Mantenha o ritmo!",
	"Falta pouco!",
}

// spoken holds the text of each recorded cue.
var spoken = map[Cue]string{
	CueSuccess:    "Repetição concluída! Ótimo!",
	CueTransition: "Correto!",
	CueStart:      "Missão iniciada! Boa sorte!",
	CueComplete:   "Parabéns! Missão concluída com sucesso!",
	CueError:      "Houve um equívoco ao fazer a atividade!",
}

func cue(c Cue, msg string) Feedback {
	return Feedback{Cue: c, Message: msg, Speech: spoken[c]}
}

// ForStart is shown when a mission begins.
func ForStart(title string) Feedback {
	return cue(CueStart, fmt.Sprintf("Missão %s iniciada! Prepare-se para começar.", title))
}

// For maps an outcome to feedback. The encouragement picked for a completed
// repetition depends only on the repetition count, so replays are stable.
func For(out mission.RepOutcome) Feedback {
	switch out.Kind {
	case mission.RepCompleted:
		if out.GoalFirstReached {
			return cue(CueComplete, "Você conseguiu!")
		}
		msg := encouragements[(out.RepetitionCount-1)%len(encouragements)]
		return cue(CueSuccess, msg)
	case mission.RepProgressed:
		return cue(CueTransition, spoken[CueTransition])
	case mission.RepMismatch:
		return cue(CueError, fmt.Sprintf("Ops! O próximo movimento é %q.", out.Expected))
	default:
		return Feedback{}
	}
}

// Package report renders a plain-text handover summary of an assessment
// session, suitable for reading out or pasting into a patient record.
package report

import (
	"fmt"
	"strings"

	"github.com/linnemanlabs/fieldtriage/internal/assess"
)

// sectionOrder fixes the rendering order so the same session always
// produces the same report.
var sectionOrder = []assess.ScaleID{
	assess.ScaleStroke,
	assess.ScaleConsciousness,
	assess.ScaleResponsiveness,
	assess.ScaleRedFlags,
	assess.ScaleFallRisk,
}

var sectionTitles = map[assess.ScaleID]string{
	assess.ScaleStroke:         "FAST Test",
	assess.ScaleConsciousness:  "GCS",
	assess.ScaleResponsiveness: "AVPU",
	assess.ScaleRedFlags:       "ISTUMBLE",
	assess.ScaleFallRisk:       "FRAT",
}

var fieldsByScale = map[assess.ScaleID][]assess.FieldID{
	assess.ScaleStroke: {
		assess.FieldStrokeFace, assess.FieldStrokeArm, assess.FieldStrokeSpeech,
		assess.FieldStrokeOnset, assess.FieldStrokeBloodThinner,
	},
	assess.ScaleConsciousness: {
		assess.FieldGCSEye, assess.FieldGCSVerbal, assess.FieldGCSMotor,
	},
	assess.ScaleResponsiveness: {assess.FieldAVPULevel},
	assess.ScaleRedFlags: {
		assess.FieldFlagPain, assess.FieldFlagSpine, assess.FieldFlagTingling,
		assess.FieldFlagAltered, assess.FieldFlagMobility, assess.FieldFlagBleed,
		assess.FieldFlagUnwell, assess.FieldFlagTrauma,
	},
	assess.ScaleFallRisk: {
		assess.FieldFallsPrevious, assess.FieldFallsMedicated,
		assess.FieldFallsGait, assess.FieldFallsCognition,
	},
}

var fieldLabels = map[assess.FieldID]string{
	assess.FieldStrokeFace:         "Face",
	assess.FieldStrokeArm:          "Arm",
	assess.FieldStrokeSpeech:       "Speech",
	assess.FieldStrokeOnset:        "Time of onset",
	assess.FieldStrokeBloodThinner: "On blood thinners",

	assess.FieldGCSEye:    "Eye",
	assess.FieldGCSVerbal: "Verbal",
	assess.FieldGCSMotor:  "Motor",

	assess.FieldAVPULevel: "Level",

	assess.FieldFlagPain:     "Pain",
	assess.FieldFlagSpine:    "Spine",
	assess.FieldFlagTingling: "Tingling",
	assess.FieldFlagAltered:  "Altered mental state",
	assess.FieldFlagMobility: "Mobility",
	assess.FieldFlagBleed:    "Bleed/anticoagulant",
	assess.FieldFlagUnwell:   "Unwell",
	assess.FieldFlagTrauma:   "Trauma",

	assess.FieldFallsPrevious:  "Previous falls",
	assess.FieldFallsMedicated: "Medications",
	assess.FieldFallsGait:      "Gait/balance",
	assess.FieldFallsCognition: "Cognition",
}

// Render produces the handover summary for one session snapshot.
func Render(snap *assess.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Assessment summary — session %s\n", snap.Record.ID)
	fmt.Fprintf(&b, "Started: %s\n", snap.Record.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "Overall risk: %s\n", strings.ToUpper(string(snap.OverallRisk)))

	for _, scale := range sectionOrder {
		fmt.Fprintf(&b, "\n== %s ==\n", sectionTitles[scale])

		for _, id := range fieldsByScale[scale] {
			fv, ok := snap.Record.Fields[id]
			if !ok || (fv.Value == "" && fv.Comment == "") {
				continue
			}
			line := fmt.Sprintf("%s: %s", fieldLabels[id], valueOrDash(fv.Value))
			if fv.Comment != "" {
				line += " — " + fv.Comment
			}
			b.WriteString(line + "\n")
		}

		if v, ok := snap.Verdicts[scale]; ok {
			fmt.Fprintf(&b, "Verdict: %s\n", v.Message)
		}
	}

	if len(snap.Record.Observations) > 0 {
		b.WriteString("\n== Observations ==\n")
		writeObservations(&b, snap.Record.Observations)
	}

	return b.String()
}

// writeObservations groups readings by set, keeping sets in first-seen
// order and readings in recorded order within each set.
func writeObservations(b *strings.Builder, observations []assess.Observation) {
	bySet := make(map[string][]assess.Observation)
	var sets []string
	for _, o := range observations {
		if _, ok := bySet[o.Set]; !ok {
			sets = append(sets, o.Set)
		}
		bySet[o.Set] = append(bySet[o.Set], o)
	}

	for _, set := range sets {
		fmt.Fprintf(b, "%s:\n", set)
		for _, o := range bySet[set] {
			fmt.Fprintf(b, "  %s = %s [%s] at %s\n",
				o.Metric, o.Value, o.Band, o.At.UTC().Format("15:04:05"))
		}
	}
}

func valueOrDash(v string) string {
	if v == "" {
		return "—"
	}
	return v
}

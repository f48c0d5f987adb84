package marker

import (
	"fmt"
	"strings"
)

// duplicateThreshold is the word-overlap similarity above which a newly
// created task is flagged as a likely duplicate of an existing one.
const duplicateThreshold = 0.6

// confirm fills in the user-facing line for one outcome. Success text is
// built exclusively from a fresh storage read of the record the handler
// reported writing; the AI's own claim and the raw marker payload are
// never echoed back as confirmation. Failed outcomes get a failure line,
// silent tags get none.
func confirm(req *Request, out *Outcome) {
	if out.Status == Failed {
		out.Confirm = failureLine(out)
		return
	}
	if out.Status != Applied {
		return
	}

	switch out.Tag {
	case TagSchedule, TagScheduleAction:
		task, err := req.Scope.GetTask(out.Ref)
		if err != nil {
			// The write did not verify: downgrade rather than confirm.
			out.Status = Failed
			out.Detail = "post-write verification failed"
			out.Confirm = failureLine(out)
			return
		}
		line := fmt.Sprintf("✓ Scheduled: %s — %s", task.Description, task.DueAt.Local().Format("Mon, 02 Jan 2006 15:04"))
		if task.Repeat != "none" {
			line += " (" + task.Repeat + ")"
		}
		if dup := duplicateOf(req, task.ID, task.Description); dup != "" {
			line += fmt.Sprintf("\n⚠ This looks similar to an existing task: %s", dup)
		}
		out.Confirm = line

	case TagCancelTask:
		task, err := req.Scope.GetTask(out.Ref)
		if err != nil || task.Status != "cancelled" {
			out.Status = Failed
			out.Detail = "post-write verification failed"
			out.Confirm = failureLine(out)
			return
		}
		out.Confirm = fmt.Sprintf("✓ Cancelled: %s", task.Description)

	case TagUpdateTask:
		task, err := req.Scope.GetTask(out.Ref)
		if err != nil {
			out.Status = Failed
			out.Detail = "post-write verification failed"
			out.Confirm = failureLine(out)
			return
		}
		out.Confirm = fmt.Sprintf("✓ Updated: %s — %s", task.Description, task.DueAt.Local().Format("Mon, 02 Jan 2006 15:04"))

	case TagProjectActivate:
		name, err := req.Scope.GetFact("project.active")
		if err != nil || name == "" {
			out.Status = Failed
			out.Detail = "post-write verification failed"
			out.Confirm = failureLine(out)
			return
		}
		out.Confirm = fmt.Sprintf("✓ Project active: %s", name)

	case TagLesson, TagSkillImprove:
		// Lessons confirm silently, but the write still has to verify.
		if _, err := req.Scope.GetLesson(out.Ref); err != nil {
			out.Status = Failed
			out.Detail = "post-write verification failed"
		}

	case TagForgetConversation:
		out.Confirm = "✓ Conversation forgotten."

	case TagPurgeFacts:
		out.Confirm = "✓ Stored facts cleared."

		// Remaining tags apply silently: their effects surface through
		// later behavior (heartbeat content, learned lessons), not
		// through a confirmation line.
	}
}

func failureLine(out *Outcome) string {
	switch out.Tag {
	case TagSchedule, TagScheduleAction:
		return "⚠ I couldn't save that reminder."
	case TagCancelTask:
		return "⚠ I couldn't cancel that task — it may not exist."
	case TagUpdateTask:
		return "⚠ I couldn't update that task."
	default:
		return ""
	}
}

// duplicateOf compares a new task's description against the sender's other
// pending tasks by word overlap and returns the most similar description
// above the threshold.
func duplicateOf(req *Request, newID, description string) string {
	pending, err := req.Scope.PendingTasks()
	if err != nil {
		return ""
	}
	bestScore := duplicateThreshold
	best := ""
	for _, t := range pending {
		if t.ID == newID {
			continue
		}
		if s := wordOverlap(description, t.Description); s >= bestScore {
			bestScore = s
			best = t.Description
		}
	}
	return best
}

// wordOverlap is Jaccard similarity over lowercased word sets.
func wordOverlap(a, b string) float64 {
	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	inter := 0
	for w := range wa {
		if wb[w] {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[strings.Trim(w, ".,!?;:")] = true
	}
	return set
}

// Package marker implements the directive protocol that rides inside the
// AI backend's free-text output: recognizing a closed catalog of tags,
// executing each against storage in a fixed causal order, building
// confirmations from verified post-write reads, and stripping all
// protocol text before delivery.
package marker

// Tag identifies one directive kind in the catalog. Spelling is exact and
// load-bearing: extraction matches these strings case-exactly.
type Tag string

const (
	TagSchedule            Tag = "SCHEDULE"
	TagScheduleAction      Tag = "SCHEDULE_ACTION"
	TagProjectActivate     Tag = "PROJECT_ACTIVATE"
	TagProjectDeactivate   Tag = "PROJECT_DEACTIVATE"
	TagLangSwitch          Tag = "LANG_SWITCH"
	TagPersonality         Tag = "PERSONALITY"
	TagSkillImprove        Tag = "SKILL_IMPROVE"
	TagHeartbeatAdd        Tag = "HEARTBEAT_ADD"
	TagHeartbeatRemove     Tag = "HEARTBEAT_REMOVE"
	TagHeartbeatInterval   Tag = "HEARTBEAT_INTERVAL"
	TagHeartbeatSuppress   Tag = "HEARTBEAT_SUPPRESS"
	TagHeartbeatUnsuppress Tag = "HEARTBEAT_UNSUPPRESS"
	TagBugReport           Tag = "BUG_REPORT"
	TagBuildProposal       Tag = "BUILD_PROPOSAL"
	TagReward              Tag = "REWARD"
	TagLesson              Tag = "LESSON"
	TagCancelTask          Tag = "CANCEL_TASK"
	TagUpdateTask          Tag = "UPDATE_TASK"
	TagForgetConversation  Tag = "FORGET_CONVERSATION"
	TagPurgeFacts          Tag = "PURGE_FACTS"
)

// processOrder fixes the order markers are applied, independent of where
// they appeared in the text. Conversation close and fact purge run before
// anything that would repopulate state, and task cancels/updates run
// before new schedules, so purge-then-recreate sequences in one response
// behave the same no matter how the AI arranged its prose.
var processOrder = []Tag{
	TagForgetConversation,
	TagPurgeFacts,
	TagProjectDeactivate,
	TagProjectActivate,
	TagLangSwitch,
	TagPersonality,
	TagCancelTask,
	TagUpdateTask,
	TagSchedule,
	TagScheduleAction,
	TagHeartbeatInterval,
	TagHeartbeatAdd,
	TagHeartbeatRemove,
	TagHeartbeatSuppress,
	TagHeartbeatUnsuppress,
	TagSkillImprove,
	TagReward,
	TagLesson,
	TagBugReport,
	TagBuildProposal,
}

// catalog is the closed set of recognized tags.
var catalog = func() map[Tag]bool {
	m := make(map[Tag]bool, len(processOrder))
	for _, t := range processOrder {
		m[t] = true
	}
	return m
}()

// Known reports whether t is in the catalog.
func Known(t Tag) bool { return catalog[t] }

// FieldDelimiter separates payload fields.
const FieldDelimiter = " | "

// Marker is one extracted directive instance. It exists only between
// extraction and processing of a single response.
type Marker struct {
	Tag    Tag
	Fields []string
	// Line is the zero-based line index the marker was found on.
	Line int
	// Inline is true when the tag followed prose on its line; stripping
	// then removes only the marker suffix instead of the whole line.
	Inline bool
}

// Field returns the i-th payload field, or "" when absent.
func (m *Marker) Field(i int) string {
	if i < 0 || i >= len(m.Fields) {
		return ""
	}
	return m.Fields[i]
}

// Status classifies one marker's processing result.
type Status int

const (
	Applied Status = iota
	Failed
	Skipped
)

func (s Status) String() string {
	switch s {
	case Applied:
		return "applied"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

// Outcome is the typed result of processing one marker instance. Handlers
// produce exactly one Outcome per marker and never panic or abort the
// batch.
type Outcome struct {
	Tag    Tag
	Status Status
	// Detail is an internal reason or reference (e.g. a created task id).
	Detail string
	// Ref identifies the written record for the confirmation layer.
	Ref string
	// Confirm is the user-facing line, built only from verified
	// post-write storage reads.
	Confirm string
}

func applied(tag Tag, ref, detail string) Outcome {
	return Outcome{Tag: tag, Status: Applied, Ref: ref, Detail: detail}
}

func failed(tag Tag, reason string) Outcome {
	return Outcome{Tag: tag, Status: Failed, Detail: reason}
}

func skipped(tag Tag, reason string) Outcome {
	return Outcome{Tag: tag, Status: Skipped, Detail: reason}
}

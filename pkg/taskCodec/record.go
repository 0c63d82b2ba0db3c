package taskCodec

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"github.com/dandelion-network/taskctl/pkg/types"
)

// DecodeTaskRecord maps one ledger task record to a Task. Missing optional
// fields default to empty values; a record with the wrong shape, a missing
// status, or undecodable required fields is MalformedLedgerData.
func DecodeTaskRecord(id uint64, raw json.RawMessage) (*types.Task, error) {
	fields, err := recordToFields(raw)
	if err != nil {
		return nil, err
	}

	task := &types.Task{Id: id, Participants: []string{}}

	if task.Title, err = DecodeText(fields["title"]); err != nil {
		return nil, err
	}
	if task.Description, err = DecodeText(fields["description"]); err != nil {
		return nil, err
	}

	for _, required := range []string{"creator", "budget", "deadline", "status"} {
		if _, ok := fields[required]; !ok {
			return nil, taskErrors.New(taskErrors.KindMalformedLedgerData, "decodeTaskRecord", "task %d: missing %s", id, required)
		}
	}

	if task.Creator, err = decodeAddress(fields["creator"]); err != nil {
		return nil, err
	}

	budget, err := DecodeU64(fields["budget"])
	if err != nil {
		return nil, err
	}
	task.RewardOcta = strconv.FormatUint(budget, 10)
	task.Reward = toDisplay(budget)

	if task.Deadline, err = decodeTimestamp("deadline", fields["deadline"]); err != nil {
		return nil, err
	}

	if task.Status, err = ParseStatus(fields["status"]); err != nil {
		return nil, err
	}

	if raw, ok := fields["participants"]; ok && !isNull(raw) {
		var participants []json.RawMessage
		if err := json.Unmarshal(raw, &participants); err != nil {
			return nil, malformed("participants", err)
		}
		for _, p := range participants {
			addr, err := decodeAddress(p)
			if err != nil {
				return nil, err
			}
			task.Participants = append(task.Participants, addr)
		}
	}

	if inner, ok, err := unwrapOption(fields["winner"]); err != nil {
		return nil, err
	} else if ok {
		winner, err := decodeAddress(inner)
		if err != nil {
			return nil, err
		}
		if winner != zeroAddress {
			task.Winner = winner
		}
	}

	if inner, ok, err := unwrapOption(fields["dispute_deadline"]); err != nil {
		return nil, err
	} else if ok {
		if task.DisputeDeadline, err = decodeTimestamp("dispute_deadline", inner); err != nil {
			return nil, err
		}
	}

	if raw, ok := fields["locked"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &task.Locked); err != nil {
			return nil, malformed("locked", err)
		}
	}

	return task, nil
}

// decodeTimestamp reads a u64 unix time that must also fit an int64.
func decodeTimestamp(field string, raw json.RawMessage) (int64, error) {
	v, err := DecodeU64(raw)
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt64 {
		return 0, taskErrors.New(taskErrors.KindMalformedLedgerData, "decodeTask", "%s %d out of range", field, v)
	}
	return int64(v), nil
}

// DecodeTaskList accepts both the single vector return value of
// view_get_all_tasks ([[t0, t1]]) and a flat list ([t0, t1]). A record's own
// id field wins over its index.
func DecodeTaskList(values []json.RawMessage) ([]*types.Task, error) {
	records := values
	if len(values) == 1 {
		var inner []json.RawMessage
		if err := json.Unmarshal(values[0], &inner); err == nil && isRecordList(inner) {
			records = inner
		}
	}

	tasks := make([]*types.Task, 0, len(records))
	for i, rec := range records {
		id := uint64(i)
		if recId, ok := recordId(rec); ok {
			id = recId
		}
		task, err := DecodeTaskRecord(id, rec)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func recordToFields(raw json.RawMessage) (map[string]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, taskErrors.New(taskErrors.KindMalformedLedgerData, "decodeTaskRecord", "empty record")
	}

	switch raw[0] {
	case '{':
		fields := map[string]json.RawMessage{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, malformed("task record", err)
		}
		return fields, nil
	case '[':
		var values []json.RawMessage
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, malformed("task record", err)
		}
		if len(values) != len(recordFields) {
			return nil, taskErrors.New(taskErrors.KindMalformedLedgerData, "decodeTaskRecord",
				"positional record has %d fields, want %d", len(values), len(recordFields))
		}
		fields := make(map[string]json.RawMessage, len(values))
		for i, name := range recordFields {
			fields[name] = values[i]
		}
		return fields, nil
	}
	return nil, taskErrors.New(taskErrors.KindMalformedLedgerData, "decodeTaskRecord", "record is neither object nor array")
}

// isRecordList distinguishes a vector of records from a single positional record.
func isRecordList(values []json.RawMessage) bool {
	if len(values) == 0 {
		return true
	}
	first := bytes.TrimSpace(values[0])
	if len(first) == 0 {
		return false
	}
	if first[0] == '{' {
		return true
	}
	if first[0] != '[' {
		return false
	}
	if len(values) != len(recordFields) {
		return true
	}
	// ten elements: a positional record whose title is a byte array, or ten positional records
	var title []int
	return json.Unmarshal(first, &title) != nil
}

func recordId(raw json.RawMessage) (uint64, bool) {
	var withId struct {
		Id json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &withId); err != nil || withId.Id == nil {
		return 0, false
	}
	id, err := DecodeU64(withId.Id)
	return id, err == nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || string(raw) == "null"
}

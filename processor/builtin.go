package processor

import (
	"encoding/json"
	"time"

	"github.com/c360/streambridge/errors"
	"github.com/c360/streambridge/message"
)

func init() {
	// Built-in processors available to every bridge. Registration at
	// init cannot collide, so errors are ignored.
	_ = Register("passthrough", func(map[string]any) (Processor, error) {
		return PassThrough{}, nil
	})
	_ = Register("add_timestamp", func(map[string]any) (Processor, error) {
		return &AddTimestamp{}, nil
	})
	_ = Register("json_enrich", func(args map[string]any) (Processor, error) {
		fields := map[string]any{"enriched": true}
		if extra, ok := args["fields"].(map[string]any); ok {
			for k, v := range extra {
				fields[k] = v
			}
		}
		return &JSONEnrich{Fields: fields}, nil
	})
	_ = Register("priority_filter", func(args map[string]any) (Processor, error) {
		p := &PriorityFilter{Key: "priority", MinPriority: 5}
		if key, ok := args["key"].(string); ok && key != "" {
			p.Key = key
		}
		switch v := args["min_priority"].(type) {
		case int:
			p.MinPriority = float64(v)
		case float64:
			p.MinPriority = v
		}
		return p, nil
	})
}

// AddTimestamp stamps each message with a processing time header.
type AddTimestamp struct{}

// Process adds processed_at and processor headers.
func (AddTimestamp) Process(msg *message.Message) (*message.Message, error) {
	msg.SetHeader("processed_at", time.Now().Format(time.RFC3339Nano))
	msg.SetHeader("processor", "add_timestamp")
	return msg, nil
}

// JSONEnrich merges fixed fields into JSON object payloads. Non-JSON
// payloads pass through with an error marker header.
type JSONEnrich struct {
	Fields map[string]any
}

// Process rewrites the payload with the enrichment fields merged in.
func (p *JSONEnrich) Process(msg *message.Message) (*message.Message, error) {
	var payload map[string]any
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		msg.SetHeader("enrichment_error", err.Error())
		return msg, nil
	}

	for k, v := range p.Fields {
		payload[k] = v
	}

	enriched, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.WrapTransient(err, "JSONEnrich", "Process", "marshal payload")
	}
	msg.Payload = enriched
	return msg, nil
}

// PriorityFilter drops messages whose JSON payload carries a priority
// below the threshold. Messages without a parseable payload or priority
// field are forwarded.
type PriorityFilter struct {
	Key         string
	MinPriority float64
}

// Process returns nil for messages below the priority threshold.
func (p *PriorityFilter) Process(msg *message.Message) (*message.Message, error) {
	var payload map[string]any
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return msg, nil
	}

	priority, ok := payload[p.Key].(float64)
	if !ok {
		return msg, nil
	}
	if priority < p.MinPriority {
		return nil, nil
	}
	return msg, nil
}

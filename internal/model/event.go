package model

import (
	"fmt"

	"github.com/ternledger/tern-go/internal/crypto"
	"github.com/ternledger/tern-go/internal/scale"
)

// Event is the closed union of server-pushed notifications.
type Event interface {
	eventTag() uint8
	encodeEvent(e *scale.Encoder)
}

// Event discriminants.
const (
	eventPipeline uint8 = iota
	eventData
)

// PipelineEntityKind distinguishes what a pipeline event describes.
type PipelineEntityKind uint8

const (
	// EntityBlock marks pipeline events about blocks.
	EntityBlock PipelineEntityKind = iota
	// EntityTransaction marks pipeline events about transactions.
	EntityTransaction
)

func (k PipelineEntityKind) valid() bool {
	return k == EntityBlock || k == EntityTransaction
}

// PipelineStatus is the closed union of pipeline progress states. The peer
// contract is a linear progression: Validating, then exactly one of
// Committed or Rejected; there is no transition out of the terminal states.
// The decoder does not enforce the progression, it reports exactly the
// sequence the peer sends.
type PipelineStatus interface {
	statusTag() uint8
	encodeStatus(e *scale.Encoder)
}

// PipelineStatus discriminants.
const (
	statusValidating uint8 = iota
	statusCommitted
	statusRejected
)

// StatusValidating: the entity entered validation.
type StatusValidating struct{}

func (StatusValidating) statusTag() uint8 { return statusValidating }

func (StatusValidating) encodeStatus(*scale.Encoder) {}

// StatusCommitted: the entity was committed. Terminal.
type StatusCommitted struct{}

func (StatusCommitted) statusTag() uint8 { return statusCommitted }

func (StatusCommitted) encodeStatus(*scale.Encoder) {}

// StatusRejected: the entity was rejected with a reason. Terminal.
type StatusRejected struct {
	Reason string
}

func (StatusRejected) statusTag() uint8 { return statusRejected }

func (s StatusRejected) encodeStatus(e *scale.Encoder) { e.PutString(s.Reason) }

func decodePipelineStatus(d *scale.Decoder) (PipelineStatus, error) {
	tag, err := d.Tag()
	if err != nil {
		return nil, err
	}
	switch tag {
	case statusValidating:
		return StatusValidating{}, nil
	case statusCommitted:
		return StatusCommitted{}, nil
	case statusRejected:
		reason, err := d.String()
		if err != nil {
			return nil, err
		}
		return StatusRejected{Reason: reason}, nil
	default:
		return nil, fmt.Errorf("%w: pipeline status tag %d", scale.ErrUnknownTag, tag)
	}
}

// PipelineEvent describes an entity's progress through validation to
// commitment or rejection. EntityKind and Hash are optional: the peer may
// omit them for aggregate notifications.
type PipelineEvent struct {
	EntityKind *PipelineEntityKind
	Hash       *crypto.Hash
	Status     PipelineStatus
}

func (PipelineEvent) eventTag() uint8 { return eventPipeline }

func (ev PipelineEvent) encodeEvent(e *scale.Encoder) {
	e.PutOption(ev.EntityKind != nil)
	if ev.EntityKind != nil {
		e.PutU8(uint8(*ev.EntityKind))
	}
	e.PutOption(ev.Hash != nil)
	if ev.Hash != nil {
		e.PutRaw(ev.Hash[:])
	}
	e.PutTag(ev.Status.statusTag())
	ev.Status.encodeStatus(e)
}

func decodePipelineEvent(d *scale.Decoder) (PipelineEvent, error) {
	var ev PipelineEvent

	hasKind, err := d.Option()
	if err != nil {
		return ev, err
	}
	if hasKind {
		b, err := d.U8()
		if err != nil {
			return ev, err
		}
		kind := PipelineEntityKind(b)
		if !kind.valid() {
			return ev, fmt.Errorf("%w: pipeline entity kind %d", scale.ErrUnknownTag, b)
		}
		ev.EntityKind = &kind
	}

	hasHash, err := d.Option()
	if err != nil {
		return ev, err
	}
	if hasHash {
		raw, err := d.Raw(crypto.HashSize)
		if err != nil {
			return ev, err
		}
		var h crypto.Hash
		copy(h[:], raw)
		ev.Hash = &h
	}

	ev.Status, err = decodePipelineStatus(d)
	return ev, err
}

// DataEventKind describes what happened to an entity.
type DataEventKind uint8

const (
	// DataCreated marks entity creation.
	DataCreated DataEventKind = iota
	// DataUpdated marks entity mutation.
	DataUpdated
	// DataDeleted marks entity removal.
	DataDeleted
)

func (k DataEventKind) valid() bool {
	return k == DataCreated || k == DataUpdated || k == DataDeleted
}

// DataEvent describes a committed state change to a named entity.
type DataEvent struct {
	Entity IDBox
	Kind   DataEventKind
}

func (DataEvent) eventTag() uint8 { return eventData }

func (ev DataEvent) encodeEvent(e *scale.Encoder) {
	EncodeIDBox(e, ev.Entity)
	e.PutU8(uint8(ev.Kind))
}

func decodeDataEvent(d *scale.Decoder) (DataEvent, error) {
	id, err := DecodeIDBox(d)
	if err != nil {
		return DataEvent{}, err
	}
	b, err := d.U8()
	if err != nil {
		return DataEvent{}, err
	}
	kind := DataEventKind(b)
	if !kind.valid() {
		return DataEvent{}, fmt.Errorf("%w: data event kind %d", scale.ErrUnknownTag, b)
	}
	return DataEvent{Entity: id, Kind: kind}, nil
}

// EncodeEvent writes the event union discriminant followed by the payload.
func EncodeEvent(e *scale.Encoder, ev Event) {
	e.PutTag(ev.eventTag())
	ev.encodeEvent(e)
}

// DecodeEvent reads an event union. Unknown discriminants fail with
// scale.ErrUnknownTag.
func DecodeEvent(d *scale.Decoder) (Event, error) {
	tag, err := d.Tag()
	if err != nil {
		return nil, err
	}
	switch tag {
	case eventPipeline:
		return decodePipelineEvent(d)
	case eventData:
		return decodeDataEvent(d)
	default:
		return nil, fmt.Errorf("%w: event tag %d", scale.ErrUnknownTag, tag)
	}
}

// EventFilter is the closed union of subscription filters, supplied when
// opening an event stream.
type EventFilter interface {
	filterTag() uint8
	encodeFilter(e *scale.Encoder)
	// Matches reports whether an event passes the filter. Used by the peer
	// when routing events to subscribers.
	Matches(ev Event) bool
}

// EventFilter discriminants.
const (
	filterPipeline uint8 = iota
	filterData
)

// PipelineFilter selects pipeline events, optionally restricted by entity
// kind and/or entity hash. Nil fields match everything.
type PipelineFilter struct {
	EntityKind *PipelineEntityKind
	Hash       *crypto.Hash
}

func (PipelineFilter) filterTag() uint8 { return filterPipeline }

func (f PipelineFilter) encodeFilter(e *scale.Encoder) {
	e.PutOption(f.EntityKind != nil)
	if f.EntityKind != nil {
		e.PutU8(uint8(*f.EntityKind))
	}
	e.PutOption(f.Hash != nil)
	if f.Hash != nil {
		e.PutRaw(f.Hash[:])
	}
}

// Matches implements EventFilter.
func (f PipelineFilter) Matches(ev Event) bool {
	pe, ok := ev.(PipelineEvent)
	if !ok {
		return false
	}
	if f.EntityKind != nil && (pe.EntityKind == nil || *pe.EntityKind != *f.EntityKind) {
		return false
	}
	if f.Hash != nil && (pe.Hash == nil || *pe.Hash != *f.Hash) {
		return false
	}
	return true
}

// DataFilter selects all data events.
type DataFilter struct{}

func (DataFilter) filterTag() uint8 { return filterData }

func (DataFilter) encodeFilter(*scale.Encoder) {}

// Matches implements EventFilter.
func (DataFilter) Matches(ev Event) bool {
	_, ok := ev.(DataEvent)
	return ok
}

// EncodeEventFilter writes the filter union discriminant followed by the
// payload.
func EncodeEventFilter(e *scale.Encoder, f EventFilter) {
	e.PutTag(f.filterTag())
	f.encodeFilter(e)
}

// DecodeEventFilter reads a filter union. Unknown discriminants fail with
// scale.ErrUnknownTag.
func DecodeEventFilter(d *scale.Decoder) (EventFilter, error) {
	tag, err := d.Tag()
	if err != nil {
		return nil, err
	}
	switch tag {
	case filterPipeline:
		var f PipelineFilter
		hasKind, err := d.Option()
		if err != nil {
			return nil, err
		}
		if hasKind {
			b, err := d.U8()
			if err != nil {
				return nil, err
			}
			kind := PipelineEntityKind(b)
			if !kind.valid() {
				return nil, fmt.Errorf("%w: pipeline entity kind %d", scale.ErrUnknownTag, b)
			}
			f.EntityKind = &kind
		}
		hasHash, err := d.Option()
		if err != nil {
			return nil, err
		}
		if hasHash {
			raw, err := d.Raw(crypto.HashSize)
			if err != nil {
				return nil, err
			}
			var h crypto.Hash
			copy(h[:], raw)
			f.Hash = &h
		}
		return f, nil
	case filterData:
		return DataFilter{}, nil
	default:
		return nil, fmt.Errorf("%w: event filter tag %d", scale.ErrUnknownTag, tag)
	}
}

package models

import "time"

// Collection names a document collection.
type Collection string

const (
	CollectionActivities   Collection = "activities"
	CollectionCertificates Collection = "certificates"
	CollectionGoals        Collection = "goals"
	CollectionEvents       Collection = "events"
	CollectionAchievements Collection = "achievements"
)

// Owned reports whether documents of c are private to a user.
func (c Collection) Owned() bool {
	switch c {
	case CollectionActivities, CollectionCertificates, CollectionGoals:
		return true
	default:
		return false
	}
}

// FilterOp is a comparison supported by the document store.
type FilterOp string

const (
	OpEq  FilterOp = "=="
	OpLt  FilterOp = "<"
	OpLte FilterOp = "<="
	OpGt  FilterOp = ">"
	OpGte FilterOp = ">="
)

// Filter compares a single document field against a value.
type Filter struct {
	Field string      `json:"field"`
	Op    FilterOp    `json:"op"`
	Value interface{} `json:"value"`
}

// Order sorts results by one field.
type Order struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc"`
}

// Query describes a read over one collection.
type Query struct {
	Collection Collection `json:"collection"`
	Filters    []Filter   `json:"filters,omitempty"`
	Order      *Order     `json:"order,omitempty"`
	Limit      int        `json:"limit,omitempty"`
}

// Where appends an equality or range filter.
func (q Query) Where(field string, op FilterOp, value interface{}) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

// OrderBy sets the sort.
func (q Query) OrderBy(field string, desc bool) Query {
	q.Order = &Order{Field: field, Desc: desc}
	return q
}

// OwnerID returns the value of an equality filter on userId, if any.
func (q Query) OwnerID() (string, bool) {
	for _, f := range q.Filters {
		if f.Field == "userId" && f.Op == OpEq {
			s, ok := f.Value.(string)
			return s, ok
		}
	}
	return "", false
}

// ChangeOp is the kind of write behind a change notification.
type ChangeOp string

const (
	ChangeInsert ChangeOp = "insert"
	ChangeUpdate ChangeOp = "update"
	ChangeDelete ChangeOp = "delete"
)

// Change tells watchers of Collection that a document was written.
type Change struct {
	Collection Collection `json:"collection"`
	DocumentID string     `json:"documentId"`
	OwnerID    string     `json:"ownerId,omitempty"`
	Op         ChangeOp   `json:"op"`
	At         time.Time  `json:"at"`
}

package mc

// Field is a bitmask of wire message fields meaningful for an operation.
type Field uint16

const (
	FieldValue Field = 1 << iota
	FieldFlags
	FieldExptime
	FieldNumber
	FieldLeaseToken
	FieldCas
	FieldDelta
)

// Traits describes the per-operation contract: which result a synthetic
// default-success reply carries, and which wire fields the operation emits.
type Traits struct {
	// DefaultResult is the canonical success result for the operation, e.g.
	// a synthesized delete reply is "deleted" while a get is "found".
	DefaultResult Result

	// Fields meaningful on the wire for this operation.
	Fields Field
}

var opTraits = map[Op]Traits{
	OpGet:      {ResFound, FieldValue | FieldFlags},
	OpGets:     {ResFound, FieldValue | FieldFlags | FieldCas},
	OpLeaseGet: {ResFound, FieldValue | FieldFlags | FieldLeaseToken},
	OpMetaGet:  {ResFound, FieldValue | FieldFlags | FieldExptime | FieldNumber},
	OpSet:      {ResStored, FieldFlags | FieldExptime},
	OpLeaseSet: {ResStored, FieldFlags | FieldExptime | FieldLeaseToken},
	OpAdd:      {ResStored, FieldFlags | FieldExptime},
	OpReplace:  {ResStored, FieldFlags | FieldExptime},
	OpCas:      {ResStored, FieldFlags | FieldExptime | FieldCas},
	OpAppend:   {ResStored, 0},
	OpPrepend:  {ResStored, 0},
	OpDelete:   {ResDeleted, 0},
	OpIncr:     {ResStored, FieldDelta},
	OpDecr:     {ResStored, FieldDelta},
	OpTouch:    {ResTouched, FieldExptime},
	OpVersion:  {ResFound, FieldValue},
}

// TraitsOf returns the trait entry for the given op.  Unknown ops get an
// all-fields entry with an unknown default result so nothing is dropped.
func TraitsOf(op Op) Traits {
	if t, ok := opTraits[op]; ok {
		return t
	}
	return Traits{ResUnknown, ^Field(0)}
}

// DefaultResult returns the canonical success result for op.
func DefaultResult(op Op) Result {
	return TraitsOf(op).DefaultResult
}

// HasField returns whether the field is meaningful for op.
func HasField(op Op, f Field) bool {
	return TraitsOf(op).Fields&f != 0
}

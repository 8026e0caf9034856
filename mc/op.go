package mc

// Op identifies the operation a message or reply belongs to.
type Op uint8

const (
	OpUnknown Op = iota
	OpGet
	OpGets
	OpLeaseGet
	OpMetaGet
	OpSet
	OpLeaseSet
	OpAdd
	OpReplace
	OpCas
	OpAppend
	OpPrepend
	OpDelete
	OpIncr
	OpDecr
	OpTouch
	OpVersion
)

var opStrings = map[Op]string{
	OpUnknown:  "unknown",
	OpGet:      "get",
	OpGets:     "gets",
	OpLeaseGet: "lease-get",
	OpMetaGet:  "metaget",
	OpSet:      "set",
	OpLeaseSet: "lease-set",
	OpAdd:      "add",
	OpReplace:  "replace",
	OpCas:      "cas",
	OpAppend:   "append",
	OpPrepend:  "prepend",
	OpDelete:   "delete",
	OpIncr:     "incr",
	OpDecr:     "decr",
	OpTouch:    "touch",
	OpVersion:  "version",
}

func (o Op) String() string {
	if s, ok := opStrings[o]; ok {
		return s
	}
	return "invalid"
}

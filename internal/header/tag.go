// Package header implements the on-disk RPM header blob: the serialised
// entry-index-plus-data-area structure described in the file format doc,
// and the handful of tags this tool reads or writes.
package header

// Kind is the RPM header entry type code.
type Kind uint32

// Entry type codes used by this tool. The full RPM type table has more
// (char, int8, int16, int64, i18nstring); genbasedir never needs them.
const (
	KindNull        Kind = 0
	KindString      Kind = 6
	KindBin         Kind = 7
	KindStringArray Kind = 8
	KindInt32       Kind = 4
)

// Alignment returns the required alignment, in bytes, for data of this kind.
func (k Kind) Alignment() int {
	if k == KindInt32 {
		return 4
	}
	return 1
}

// Tag is an RPM header tag number.
type Tag int32

// Tags this tool reads from source packages.
const (
	TagName           Tag = 1000
	TagVersion        Tag = 1001
	TagRelease        Tag = 1002
	TagEpoch          Tag = 1003
	TagProvideName    Tag = 1047
	TagRequireName    Tag = 1049
	TagConflictName   Tag = 1054
	TagObsoleteName   Tag = 1090
	TagProvideVersion Tag = 1113
	TagObsoleteVer    Tag = 1115
	TagDirIndexes     Tag = 1116
	TagBasenames      Tag = 1117
	TagDirNames       Tag = 1118
	TagSourceRPM      Tag = 1044
	TagArch           Tag = 1022
	TagHeaderImmutable Tag = 63
)

// Synthetic APT tags. Numeric values from crpmtag.h. internal/pipeline
// appends DIRECTORY, FILENAME, FILESIZE and MD5 to every header it emits;
// it does not write BINARY.
const (
	TagFilename  Tag = 1000000
	TagFileSize  Tag = 1000001
	TagMD5       Tag = 1000005
	TagDirectory Tag = 1000010
	TagBinary    Tag = 1000011
)

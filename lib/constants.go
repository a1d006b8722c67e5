package svn

const (
	Newline  = "\n"
	PropsEnd = "PROPS-END"

	VersionStringHeader     = "SVN-fs-dump-format-version"
	UUIDHeader              = "UUID"
	RevisionNumberHeader    = "Revision-number"
	PropContentLengthHeader = "Prop-content-length"
	TextContentLengthHeader = "Text-content-length"
	ContentLengthHeader     = "Content-length"

	NodePathHeader         = "Node-path"
	NodeKindHeader         = "Node-kind"
	NodeActionHeader       = "Node-action"
	NodeCopyFromRevHeader  = "Node-copyfrom-rev"
	NodeCopyFromPathHeader = "Node-copyfrom-path"

	TextCopySourceMD5Header  = "Text-copy-source-md5"
	TextCopySourceSHA1Header = "Text-copy-source-sha1"
	TextDeltaHeader          = "Text-delta"
	PropDeltaHeader          = "Prop-delta"
	TextDeltaBaseMD5Header   = "Text-delta-base-md5"
	TextDeltaBaseSHA1Header  = "Text-delta-base-sha1"
	TextContentMD5Header     = "Text-content-md5"
	TextContentSHA1Header    = "Text-content-sha1"
)

// Well-known property names.
const (
	PropLog       = "svn:log"
	PropDate      = "svn:date"
	PropAuthor    = "svn:author"
	PropMergeInfo = "svn:mergeinfo"
)

// PaddingLogMessage replaces svn:log on revisions that survive filtering with
// no nodes left in them.
const PaddingLogMessage = "This is an empty revision for padding."

// ChunkSize is the read size used for text bodies.
const ChunkSize = 16 * 1024

// Format versions understood by the parser. Version 3 adds deltas.
const (
	MinDumpFormat   = 1
	DeltaDumpFormat = 3
	MaxDumpFormat   = 3
)

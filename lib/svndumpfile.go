// Package svn reads, filters, loads and writes Subversion dump streams.
//
// Parse tokenizes a stream and drives a Consumer; Filter and Loader are the
// two Consumers. Dump drives a DumpEditor over a Repository to produce a
// stream.
package svn

/*
dump -> format-record [uuid-record] revision*

format-record -> "SVN-fs-dump-format-version: " <digits> <newline> <newline>

uuid-record -> "UUID: " <uuid> <newline> <newline>

revision -> revision-number revision-props <newline> node-list

revision-number -> "Revision-number: " <digits>:revision-number <newline>

revision-props ->
  "Prop-content-length: " <digits>:prop-content-length <newline>
  "Content-length: " <digits>:prop-content-length <newline> <newline>
  <prop-content-length bytes of property-data>

property-data -> key-value-pair-list props-end

key-value-pair-list -> (key-value-pair | deletion) *

key-value-pair -> key value

key -> "K " digit:key-length <newline> <key-length bytes of data> <newline>

value -> "V " digit:value-length <newline> <value-length bytes of data> <newline>

deletion -> "D " digit:key-length <newline> <key-length bytes of data> <newline>
  (only in property deltas)

props-end -> "PROPS-END" <newline>

node-list -> node *

node -> node-header node-content <newline> <newline>

node-header ->
  Node-path: <newline-terminated-string>
  [Node-kind: "file" | "dir"]
  Node-action: "change" | "add" | "delete" | "replace"
  [Node-copyfrom-rev: <digits>]
  [Node-copyfrom-path: <newline-terminated-string>]

node-content -> node-content-header node-content-body

node-content-header ->
  [Text-copy-source-md5: <hex>]
  [Text-copy-source-sha1: <hex>]
  [Prop-delta: "true"]
  [Prop-content-length: <digits>:node-prop-content-length]
  [Text-delta-base-md5: <hex>]
  [Text-delta-base-sha1: <hex>]
  [Text-delta: "true"]
  [Text-content-length: <digits>:node-text-content-length]
  [Text-content-md5: <hex>]
  [Text-content-sha1: <hex>]
  Content-length: <digits>:node-content-length <newline> <newline>

node-content-body ->
  <node-prop-content-length bytes of property-data>
  <node-text-content-length bytes of text, or svndiff when Text-delta is true>

Header order is not significant to readers, and extra blank lines between
records are tolerated.
*/

// Package indices contains index definitions.
//
// Objects are stored as a whole in primary storage; indexes project selected
// field values into denormalized SQL tables so that queries can filter and
// sort without scanning objects. To declare indexes, first make some
// definitions:
//
//	var (
//	    IndexTags        = indices.Field("tags")
//	    IndexAuthorTitle = indices.Compound(
//	        indices.Field("author"),
//	        indices.Field("title", indices.IgnoreCase),
//	    )
//	)
//
// and then declare them on the environment (indexes shared by every object)
// or on a particular type:
//
//	err := indices.Declare(articleType, IndexTags, IndexAuthorTitle)
//
// Definitions are immutable and can be shared among many types, given that
// they all contain the covered fields.
//
// The first covered field decides which table family stores the rows: dates
// and numbers go to RecordNumber*, locations and regions to RecordLocation*
// and RecordRegion*, references and UUIDs to RecordUuid*, everything else to
// RecordString*.
package indices

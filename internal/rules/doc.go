// Package rules loads freeze correlation rules and answers classification
// and resolution queries against them.
//
// A rule file has four nesting levels: the freeze root, a list of rules
// keyed by (domain, eventId), the links of each rule, and one result per
// link carrying the result code, scope and same-package policy:
//
//	freeze:
//	  rules:
//	    - domain: AAFWK
//	      eventId: LIFECYCLE_TIMEOUT
//	      links:
//	        - domain: AAFWK
//	          eventId: LIFECYCLE_TIMEOUT
//	          window: 0
//	          result: {code: 0, scope: app}
//
// A link whose (domain, eventId) equals its rule is the principal edge.
// Resolve returns it together with its siblings, so the principal counts
// towards the expected edge total of its result group.
//
// YAML is the primary format. CUE files with the same schema and the
// legacy device XML format (stringid attributes) are also accepted; the
// format is chosen by file extension.
//
// A Table is immutable once Load returns and is safe for concurrent use.
// Load never returns a nil Table: on failure the table is empty, every
// query answers "no rule", and the error says why.
package rules

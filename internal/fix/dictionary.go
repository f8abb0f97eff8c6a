package fix

// DataDictionary validates a Message's fields against a specific FIX
// version/message-type schema. It is out of scope for this engine in the
// sense that no concrete schema-driven implementation lives here (§1:
// "treated as external collaborators"); the Session only needs the
// narrow capability below to decide whether to accept a cloned provider.
//
// A nil DataDictionaryProvider is valid: the session performs no
// schema-level validation and relies entirely on its own structural
// checks (CompID, sequence number, latency) plus whatever the
// Application's FromAdmin/FromApp callbacks choose to enforce.
type DataDictionary interface {
	// Validate checks msg's fields against the schema for its MsgType
	// and BeginString, returning a FieldNotFoundError, an error wrapping
	// ErrIncorrectTagValue, or nil.
	Validate(msg *Message) error
}

// DataDictionaryProvider resolves the DataDictionary to use for a given
// BeginString, supporting FIXT.1.1's split transport/application
// dictionaries.
type DataDictionaryProvider interface {
	// SessionDataDictionary returns the dictionary for the session
	// (transport) layer given beginString.
	SessionDataDictionary(beginString string) (DataDictionary, bool)

	// ApplicationDataDictionary returns the dictionary for the
	// application layer given an ApplVerID (FIXT.1.1) or, pre-FIXT,
	// the same as SessionDataDictionary.
	ApplicationDataDictionary(applVerID string) (DataDictionary, bool)

	// Clone returns an independent copy, so a Session can own its
	// provider without aliasing another session's mutable state
	// (§3 Ownership: "DataDictionaryProvider (cloned)").
	Clone() DataDictionaryProvider
}

// nopDataDictionary accepts every message unconditionally.
type nopDataDictionary struct{}

func (nopDataDictionary) Validate(*Message) error { return nil }

// nopDataDictionaryProvider is the zero-configuration provider: no
// schema validation is performed anywhere.
type nopDataDictionaryProvider struct{}

func (nopDataDictionaryProvider) SessionDataDictionary(string) (DataDictionary, bool) {
	return nopDataDictionary{}, true
}

func (nopDataDictionaryProvider) ApplicationDataDictionary(string) (DataDictionary, bool) {
	return nopDataDictionary{}, true
}

func (p nopDataDictionaryProvider) Clone() DataDictionaryProvider { return p }

// NopDataDictionaryProvider is a DataDictionaryProvider that performs no
// schema validation, used when no external dictionary is configured.
var NopDataDictionaryProvider DataDictionaryProvider = nopDataDictionaryProvider{}

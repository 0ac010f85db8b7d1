package object

// CommitSigningPayload returns the serialized commit with its signature
// cleared. Signers sign these bytes and verifiers recompute them.
func CommitSigningPayload(c *CommitObj) []byte {
	if c == nil {
		return nil
	}
	unsigned := *c
	unsigned.Signature = ""
	return MarshalCommit(&unsigned)
}

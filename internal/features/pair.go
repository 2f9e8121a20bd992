package features

// Pair is one side of a query/candidate comparison: header fields,
// lines, and the line-description text blob used for the text proxy.
type Pair struct {
	Header Header
	Lines  []Line
	Text   string
}

// Compute assembles the full feature vector for (query, candidate) —
// the union of header, line-assignment, and text features. w carries
// the line-assignment cost weights, resolved by the caller per
// (tenant, vendor) through internal/configstore.
func Compute(query, candidate Pair, w Weights) Vector {
	v := HeaderFeatures(query.Header, candidate.Header)
	for k, val := range LineAssignFeatures(query.Lines, candidate.Lines, w) {
		v[k] = val
	}
	v["text_cosine"] = TextCosine(query.Text, candidate.Text)
	return v
}

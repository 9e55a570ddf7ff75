package db

// KNNQuery asks an index for the K nearest hashes to Vector.
type KNNQuery struct {
	Index  string
	Field  string // vector attribute; DefaultVectorField when empty
	Vector []float32
	K      int
	Return []string
}

// Hit is one KNN result. Similarity is 1 - cosine distance, floored at 0.
type Hit struct {
	Key        string
	Similarity float64
	Fields     map[string]string
}

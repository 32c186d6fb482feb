package model

// Segment is one unit of loader output, e.g. a pdf page.
type Segment struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type Chunk struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Source    string    `json:"source"`
	Segment   int       `json:"segment"`
	Position  int       `json:"position"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding,omitempty"`
	Ctime     int64     `json:"ctime"`
}

type ScoredChunk struct {
	Chunk
	Score float32 `json:"score"`
}

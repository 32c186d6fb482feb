package model

type Source struct {
	Content  string `json:"content"`
	Filename string `json:"filename"`
}

type ChatEntry struct {
	Question  string   `json:"question"`
	Answer    string   `json:"answer"`
	Sources   []Source `json:"sources"`
	Timestamp string   `json:"timestamp"`
}

package model

// QAItem 是抓取得到的一条问答记录。
type QAItem struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Source   string `json:"source"`
}

// QADump 是存放在对象存储中的问答导出文件格式。
type QADump struct {
	LastUpdated string   `json:"last_updated,omitempty"`
	Data        []QAItem `json:"data"`
}

package mirror

// Entry 是单个被镜像对象的登记记录。SourceKey/DisplayName 创建后不可变，
// 其余字段仅由调度器在持锁状态下修改。
type Entry struct {
	// SourceKey 在远端来源处唯一标识对象。
	SourceKey string
	// DisplayName 可选的用户可见名称。
	DisplayName string
	// LastStatus 记录最近一次完成的拉取状态码，0 表示从未尝试。
	LastStatus int

	// processed 是一次性锁存：对象首次可用（缓存命中或网络路径）后置位，
	// 表达“曾经可用”而非“当前新鲜”，任何操作都不会将其清除。
	processed bool
	// fetching 在拉取任务在途期间置位，阻止同一对象被重复调度。
	fetching bool
}

// EntryState 是 Entry 的只读快照，供诊断端在锁外安全使用。
type EntryState struct {
	SourceKey   string `json:"source_key"`
	DisplayName string `json:"display_name,omitempty"`
	LastStatus  int    `json:"last_status"`
	Processed   bool   `json:"processed"`
	Fetching    bool   `json:"fetching"`
}

func (e *Entry) state() EntryState {
	return EntryState{
		SourceKey:   e.SourceKey,
		DisplayName: e.DisplayName,
		LastStatus:  e.LastStatus,
		Processed:   e.processed,
		Fetching:    e.fetching,
	}
}

package utils

// Label 标记推荐结果的来源模型，多路推荐合并后仍可追溯。
type Label struct {
	Value  string `json:"value"`  // 模型名，例如 BiasedMF
	Source string `json:"source"` // 来源类别，例如 reco
}

// MergeLabel 合并两个 Label：Value 以 '|' 累积，Source 以 ',' 累积，空值不参与合并。
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}

	merged := existing
	merged.Value = existing.Value + "|" + incoming.Value
	switch {
	case existing.Source == "":
		merged.Source = incoming.Source
	case incoming.Source == "":
		merged.Source = existing.Source
	default:
		merged.Source = existing.Source + "," + incoming.Source
	}
	return merged
}

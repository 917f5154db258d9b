package prompt

// EstimateTokens 估算文本的 token 数
//
// 采用 ceil(字符数/4) 的固定启发式。这只是近似值，不是精确分词结果；
// 预算判断统一使用该估算，保证同一输入得到同一结论。
func EstimateTokens(content string) int {
	n := len(content)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

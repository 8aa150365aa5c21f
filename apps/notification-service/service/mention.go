package service

import "regexp"

// 提及记号：@后跟字母数字下划线，长度1-32
var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_]{1,32})`)

// ParseMentions 从评论内容中提取被提及的用户名（去重，保持出现顺序）
func ParseMentions(content string) []string {
	if content == "" {
		return nil
	}

	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	var usernames []string
	for _, m := range matches {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		usernames = append(usernames, name)
	}
	return usernames
}

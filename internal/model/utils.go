package model

import "time"

// TruncateString cắt chuỗi xuống độ dài tối đa cho phép nếu chuỗi dài hơn
// giới hạn. Cắt theo rune: cột varchar của MySQL đếm ký tự, và cắt giữa
// một rune UTF-8 sẽ làm giá trị không hợp lệ với utf8mb4.
func TruncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	return string(runes[:maxLength])
}

// twitterTimeLayout là định dạng created_at của Twitter,
// ví dụ "Wed Aug 27 13:08:45 +0000 2008"
const twitterTimeLayout = "Mon Jan 02 15:04:05 -0700 2006"

// ParseTwitterTime đổi created_at của Twitter sang RFC 3339.
// Không parse được thì trả về chuỗi rỗng.
func ParseTwitterTime(created string) string {
	if created == "" {
		return ""
	}
	t, err := time.Parse(twitterTimeLayout, created)
	if err != nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

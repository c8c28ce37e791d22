package service

import (
	"arithmo_backend/internal/config"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"
)

// ContactService 把联系表单的内容转发到管理员邮箱。
type ContactService struct {
	Cfg *config.SMTPConfig
}

func NewContactService(cfg *config.SMTPConfig) *ContactService {
	return &ContactService{Cfg: cfg}
}

func (s *ContactService) Configured() bool {
	return s.Cfg.Host != "" && s.Cfg.Username != "" && s.Cfg.Password != ""
}

// Send 转发联系消息。username 为空表示游客来信，否则在邮件里标注账号。
func (s *ContactService) Send(name, email, message, username string) error {
	d := gomail.NewDialer(s.Cfg.Host, s.Cfg.Port, s.Cfg.Username, s.Cfg.Password)
	return d.DialAndSend(s.buildMessage(name, email, message, username))
}

func (s *ContactService) buildMessage(name, email, message, username string) *gomail.Message {
	to := s.Cfg.AdminEmail
	if to == "" {
		to = s.Cfg.Username
	}

	from := fmt.Sprintf("Message from: %s (%s)", name, email)
	account := ""
	if username != "" {
		from = fmt.Sprintf("%s\nAccount: %s", from, username)
		account = fmt.Sprintf("<p><strong>Account:</strong> %s</p>", username)
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.Cfg.Username, name)
	m.SetHeader("Reply-To", email)
	m.SetHeader("To", to)
	m.SetHeader("Subject", fmt.Sprintf("New Arithmo Contact: %s", name))
	m.SetBody("text/plain", fmt.Sprintf("%s\n\n%s", from, message))
	m.AddAlternative("text/html", fmt.Sprintf(
		"<h3>New Contact Message</h3><p><strong>Name:</strong> %s</p><p><strong>Email:</strong> %s</p>%s<div>%s</div>",
		name, email, account, strings.ReplaceAll(message, "\n", "<br>"),
	))
	return m
}

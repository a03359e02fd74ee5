// Package sms 提供短信服务
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	dysmsapi "github.com/alibabacloud-go/dysmsapi-20170525/v3/client"
	"github.com/alibabacloud-go/tea/tea"
)

// Config 短信配置
type Config struct {
	AccessKeyID     string
	AccessKeySecret string
	SignName        string
	Endpoint        string
}

// TemplateCode 短信模板编码
type TemplateCode string

const (
	TemplateCodeCommission TemplateCode = "SMS_COMMISSION" // 佣金入账通知
	TemplateCodeWithdrawal TemplateCode = "SMS_WITHDRAWAL" // 提现状态通知
	TemplateCodeApproved   TemplateCode = "SMS_APPROVED"   // 推广员审核通过通知
)

// Sender 短信发送接口
type Sender interface {
	SendNotification(ctx context.Context, phone string, templateCode TemplateCode, params map[string]string) error
}

// Client 阿里云短信客户端
type Client struct {
	client   *dysmsapi.Client
	signName string
}

// NewClient 创建短信客户端
func NewClient(cfg *Config) (*Client, error) {
	config := &openapi.Config{
		AccessKeyId:     tea.String(cfg.AccessKeyID),
		AccessKeySecret: tea.String(cfg.AccessKeySecret),
	}

	if cfg.Endpoint != "" {
		config.Endpoint = tea.String(cfg.Endpoint)
	} else {
		config.Endpoint = tea.String("dysmsapi.aliyuncs.com")
	}

	client, err := dysmsapi.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sms client: %w", err)
	}

	return &Client{
		client:   client,
		signName: cfg.SignName,
	}, nil
}

// SendNotification 发送通知短信
func (c *Client) SendNotification(ctx context.Context, phone string, templateCode TemplateCode, params map[string]string) error {
	templateParam, _ := json.Marshal(params)

	request := &dysmsapi.SendSmsRequest{
		PhoneNumbers:  tea.String(phone),
		SignName:      tea.String(c.signName),
		TemplateCode:  tea.String(string(templateCode)),
		TemplateParam: tea.String(string(templateParam)),
	}

	response, err := c.client.SendSms(request)
	if err != nil {
		return fmt.Errorf("failed to send sms: %w", err)
	}

	if *response.Body.Code != "OK" {
		return fmt.Errorf("sms send failed: %s - %s", *response.Body.Code, *response.Body.Message)
	}

	return nil
}

// MockMessage 模拟发送的消息
type MockMessage struct {
	Phone        string
	TemplateCode TemplateCode
	Params       map[string]string
}

// MockClient 模拟短信客户端（用于开发测试）
type MockClient struct {
	mu       sync.Mutex
	messages []MockMessage
}

// NewMockClient 创建模拟客户端
func NewMockClient() *MockClient {
	return &MockClient{}
}

// SendNotification 模拟发送通知，只记录不外呼
func (c *MockClient) SendNotification(ctx context.Context, phone string, templateCode TemplateCode, params map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, MockMessage{
		Phone:        phone,
		TemplateCode: templateCode,
		Params:       params,
	})
	return nil
}

// Messages 返回已记录消息的副本
func (c *MockClient) Messages() []MockMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]MockMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// LastMessage 最后一条消息，无消息返回 nil
func (c *MockClient) LastMessage() *MockMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return nil
	}
	msg := c.messages[len(c.messages)-1]
	return &msg
}

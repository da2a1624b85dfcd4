package usecases

import (
	"strings"

	"hekumbi_chat/internal/entities"
)

const (
	WelcomeMessage = "Olá! Bem-vindo à HEKUMBI! 👋 Como posso ajudá-lo hoje?"
	DefaultReply   = "Obrigado pela sua mensagem! Um de nossos atendentes entrará em contato em breve."
)

type cannedReply struct {
	keyword string
	reply   string
}

// Table order is precedence order.
var cannedReplies = []cannedReply{
	{
		keyword: "solicitar orçamento",
		reply:   "Ótimo! Vou te direcionar para nosso formulário de orçamento. Você pode preencher seus dados e receberá uma proposta personalizada em até 24 horas.",
	},
	{
		keyword: "nossos serviços",
		reply:   "Oferecemos serviços de limpeza para: Condomínios, Hospitais, Escolas, Shoppings, Empresas e Igrejas. Qual tipo de serviço você precisa?",
	},
	{
		keyword: "falar com atendente",
		reply:   "Conectando você com um de nossos atendentes... Por favor, aguarde um momento.",
	},
	{
		keyword: "horário de funcionamento",
		reply:   "Nosso horário de atendimento é:\n📅 Segunda a Sexta: 8:00 - 18:00\n📅 Sábado: 8:00 - 12:00\n📞 Emergências 24h: +244 972 620 967",
	},
	{
		keyword: "localização",
		reply:   "Estamos na Rua direita do Shopping Talatona, casa n.º 92, Talatona, Luanda - Angola.\n📍 Em frente ao Shopping Talatona.",
	},
	{
		keyword: "contacto",
		reply:   "Pode falar connosco por:\n📞 +244 972 620 967\n✉️ contacto@hekumbi.co.ao\nResposta em até 24 horas.",
	},
}

// MessageService answers customer messages from a fixed keyword table.
type MessageService struct{}

func NewMessageService() *MessageService {
	return &MessageService{}
}

// Reply returns the reply of the first keyword contained in content, or DefaultReply.
func (s *MessageService) Reply(content string) string {
	lower := strings.ToLower(strings.TrimSpace(content))
	for _, c := range cannedReplies {
		if strings.Contains(lower, c.keyword) {
			return c.reply
		}
	}
	return DefaultReply
}

// Keywords lists the quick-reply phrases shown to the customer.
func (s *MessageService) Keywords() []string {
	out := make([]string, len(cannedReplies))
	for i, c := range cannedReplies {
		out[i] = c.keyword
	}
	return out
}

func (s *MessageService) Welcome() string { return WelcomeMessage }

// CourtesyReply is sent by the bot after an operator thanks the customer or
// marks the issue solved.
const CourtesyReply = "Fico feliz em ajudar! 😊 Se precisar de mais alguma coisa, estarei aqui."

var courtesyTriggers = []string{"obrigado", "resolvido"}

// FollowUp returns the bot follow-up for an operator message, if any.
func (s *MessageService) FollowUp(content string) (string, bool) {
	lower := strings.ToLower(content)
	for _, t := range courtesyTriggers {
		if strings.Contains(lower, t) {
			return CourtesyReply, true
		}
	}
	return "", false
}

// Respond picks the scripted bot message that follows a message from sender.
// Customers always get a reply; operators only on courtesy phrases.
func (s *MessageService) Respond(sender entities.Sender, content string) (string, bool) {
	switch sender {
	case entities.SenderCustomer:
		return s.Reply(content), true
	case entities.SenderAdmin:
		return s.FollowUp(content)
	}
	return "", false
}

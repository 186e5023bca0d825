package domain

const (
	ProjectPlanning   Status = "planejamento"
	ProjectInProgress Status = "em_andamento"
	ProjectPaused     Status = "pausado"
	ProjectDone       Status = "concluido"
	ProjectCanceled   Status = "cancelado"
)

const (
	TaskBacklog    Status = "backlog"
	TaskTodo       Status = "a_fazer"
	TaskInProgress Status = "em_andamento"
	TaskReview     Status = "em_revisao"
	TaskDone       Status = "concluida"
	TaskBlocked    Status = "bloqueada"
	TaskCanceled   Status = "cancelada"
)

const (
	DeliverablePending    Status = "pendente"
	DeliverableProducing  Status = "em_producao"
	DeliverableInApproval Status = "em_aprovacao"
	DeliverableInRevision Status = "em_revisao"
	DeliverableApproved   Status = "aprovado"
	DeliverableDelivered  Status = "entregue"
	DeliverableCanceled   Status = "cancelado"
)

const (
	ProposalDraft       Status = "rascunho"
	ProposalSent        Status = "enviada"
	ProposalNegotiating Status = "em_negociacao"
	ProposalApproved    Status = "aprovada"
	ProposalRejected    Status = "recusada"
	ProposalExpired     Status = "expirada"
)

const (
	MeetingScheduled   Status = "agendada"
	MeetingHeld        Status = "realizada"
	MeetingCanceled    Status = "cancelada"
	MeetingRescheduled Status = "remarcada"
)

const (
	DecisionPending  Status = "pendente"
	DecisionApproved Status = "aprovada"
	DecisionRejected Status = "rejeitada"
	DecisionRevoked  Status = "revogada"
)

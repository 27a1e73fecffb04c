package scheduling

// User-facing validation messages shared by the booking and patient forms.
const (
	MsgPatientRequired = "Selecione um paciente"
	MsgDoctorRequired  = "Selecione um médico"
	MsgPriceRequired   = "Valor da consulta é obrigatório"
	MsgDateRequired    = "Selecione uma data"
	MsgDateInvalid     = "Data inválida."
	MsgTimeRequired    = "Horário é obrigatório."
	MsgTimeInvalid     = "Horário inválido."
	MsgPriceInvalid    = "Valor da consulta inválido."
)

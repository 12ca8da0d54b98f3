package enums

type GesturePhase string

const (
	GestureActive   GesturePhase = "active"
	GestureReleased GesturePhase = "released"
)

type QuotaKind string

const (
	QuotaSuperLike QuotaKind = "superlike"
	QuotaRewind    QuotaKind = "rewind"
)

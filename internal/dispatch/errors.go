package dispatch

import "errors"

// Ошибки диспетчера узлов.
var (
	// ErrTokenVersion — continuation-токен отсутствует или другой версии.
	ErrTokenVersion = errors.New("bad continuation token version")

	// ErrUnknownNodeType — тип узла не зарегистрирован в реестре.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrNotGather — узел на входе в сбор цифр не GATHER.
	ErrNotGather = errors.New("node is not gather")

	// ErrBranchMissing — у CONDITION не настроена нужная ветка.
	ErrBranchMissing = errors.New("condition branch missing")

	// ErrExternalRequest — внешний HTTP-запрос не удался.
	// Нефатальна: MAKE_REQUEST и SEND_MSG best-effort.
	ErrExternalRequest = errors.New("external request failed")
)

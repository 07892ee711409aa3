package config

type WorkerKeyStruct struct {
	PersistAttemptAnswersQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAttemptAnswersQueue: "persist_attempt_answers_queue",
}

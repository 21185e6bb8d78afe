package redisstore

import "fmt"

type queueKeys struct {
	pending   string
	inflight  string
	delayed   string
	leases    string
	dead      string
	jobPrefix string
}

func (b *Broker) keys(queue string) queueKeys {
	base := fmt.Sprintf("%s:{%s}", b.prefix, queue)
	return queueKeys{
		pending:   base + ":pending",
		inflight:  base + ":inflight",
		delayed:   base + ":delayed",
		leases:    base + ":leases",
		dead:      base + ":dead",
		jobPrefix: base + ":job:",
	}
}

func (k queueKeys) job(id string) string {
	return k.jobPrefix + id
}

func (b *Broker) queuesKey() string {
	return b.prefix + ":queues"
}

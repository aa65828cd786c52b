//
// Structured audit sink over logrus. Every entry is tagged with its event
// kind so log processors can split the IC transcript from moderation
// actions without parsing message text.
//

package courtroom

import "github.com/sirupsen/logrus"

type logrusAudit struct {
	log *logrus.Logger
}

// NewAuditLogger builds the standard audit sink writing through the given
// logrus logger.
func NewAuditLogger(log *logrus.Logger) AuditLogger {
	return &logrusAudit{log: log}
}

func (a *logrusAudit) IC(area, character, message string) {
	a.log.WithFields(logrus.Fields{"kind": "ic", "area": area, "char": character}).Info(message)
}

func (a *logrusAudit) OOC(area, name, message string) {
	a.log.WithFields(logrus.Fields{"kind": "ooc", "area": area, "name": name}).Info(message)
}

func (a *logrusAudit) Command(area, name, command string, args []string) {
	a.log.WithFields(logrus.Fields{"kind": "cmd", "area": area, "name": name, "args": args}).Info("/" + command)
}

func (a *logrusAudit) ModCall(id, area, name, reason string) {
	a.log.WithFields(logrus.Fields{"kind": "modcall", "id": id, "area": area, "name": name}).Warn(reason)
}

func (a *logrusAudit) BanAction(moderator, ipid, reason string) {
	a.log.WithFields(logrus.Fields{"kind": "ban", "moderator": moderator, "ipid": ipid}).Warn(reason)
}

func (a *logrusAudit) Connect(ipid, addr string) {
	a.log.WithFields(logrus.Fields{"kind": "connect", "ipid": ipid, "addr": addr}).Info("connection opened")
}

func (a *logrusAudit) Disconnect(ipid string) {
	a.log.WithFields(logrus.Fields{"kind": "connect", "ipid": ipid}).Info("connection closed")
}

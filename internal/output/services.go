package output

// serviceNames maps well-known TCP ports to conventional service
// names for display. The table is intentionally small; anything not
// listed renders as "-".
var serviceNames = map[int]string{
	20:    "ftp-data",
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	53:    "dns",
	80:    "http",
	110:   "pop3",
	111:   "rpcbind",
	119:   "nntp",
	135:   "msrpc",
	139:   "netbios-ssn",
	143:   "imap",
	161:   "snmp",
	389:   "ldap",
	443:   "https",
	445:   "microsoft-ds",
	465:   "smtps",
	514:   "syslog",
	587:   "submission",
	631:   "ipp",
	636:   "ldaps",
	873:   "rsync",
	993:   "imaps",
	995:   "pop3s",
	1025:  "nfs-or-iis",
	1080:  "socks",
	1433:  "mssql",
	1521:  "oracle",
	1723:  "pptp",
	2049:  "nfs",
	2181:  "zookeeper",
	2222:  "ssh-alt",
	3128:  "squid",
	3306:  "mysql",
	3389:  "rdp",
	4369:  "epmd",
	5060:  "sip",
	5432:  "postgresql",
	5672:  "amqp",
	5900:  "vnc",
	5984:  "couchdb",
	6379:  "redis",
	7001:  "weblogic",
	8000:  "http-alt",
	8025:  "mailhog",
	8080:  "http-proxy",
	8081:  "http-alt",
	8443:  "https-alt",
	8888:  "http-alt",
	9000:  "cslistener",
	9090:  "websm",
	9092:  "kafka",
	9200:  "elasticsearch",
	11211: "memcached",
	27017: "mongodb",
}

// ServiceName returns the conventional service name for a TCP port,
// or the empty string when the port is not well known.
func ServiceName(port int) string {
	return serviceNames[port]
}

package config

// DomainsConfig represents the parsed domains.yaml structure
type DomainsConfig struct {
	// Service is the namespace of the exported zone-id parameters (/<service>/<key>)
	Service string `yaml:"service,omitempty"`

	// Account is the deployment account; left empty it is rendered as a token
	Account string `yaml:"account,omitempty"`

	Region    string `yaml:"region,omitempty"`
	Qualifier string `yaml:"qualifier,omitempty"`

	// Tags is the organization-level tagging contract applied to every taggable resource
	Tags map[string]string `yaml:"tags,omitempty"`

	Shared SharedConfig `yaml:"shared,omitempty"`

	// Domains is ordered; the order is the declaration order of the stacks
	Domains []Domain `yaml:"domains"`
}

// SharedConfig configures the optional stack holding cross-domain resources
type SharedConfig struct {
	// QueryLogPolicy declares one log resource policy shared by every zone with query logging
	QueryLogPolicy bool `yaml:"query_log_policy,omitempty"`
}

// Domain describes one hosted zone and everything published in it
type Domain struct {
	Key        string `yaml:"key"`
	Zone       string `yaml:"zone"`
	Comment    string `yaml:"comment,omitempty"`
	DefaultTTL string `yaml:"default_ttl,omitempty"`

	QueryLogging  *QueryLogging  `yaml:"query_logging,omitempty"`
	Delegations   []Delegation   `yaml:"delegations,omitempty"`
	Mail          *Mail          `yaml:"mail,omitempty"`
	Verifications []Verification `yaml:"verifications,omitempty"`
	CNAMEs        []CNAME        `yaml:"cnames,omitempty"`
	Sites         []Site         `yaml:"sites,omitempty"`
}

// QueryLogging enables DNS query logs for a zone
type QueryLogging struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days,omitempty"`
}

// Delegation hands a sub-zone to other name servers
type Delegation struct {
	Name        string   `yaml:"name"`
	NameServers []string `yaml:"name_servers"`
	TTL         string   `yaml:"ttl,omitempty"`
}

// Mail holds the mail-related records of a zone
type Mail struct {
	MX    []MX     `yaml:"mx,omitempty"`
	SPF   []string `yaml:"spf,omitempty"`
	DKIM  *DKIM    `yaml:"dkim,omitempty"`
	DMARC *DMARC   `yaml:"dmarc,omitempty"`
}

// MX is one mail exchanger
type MX struct {
	Host     string `yaml:"host"`
	Priority int    `yaml:"priority"`
}

// DKIM publishes a key selector as a CNAME under _domainkey
type DKIM struct {
	Selector string `yaml:"selector"`
	Target   string `yaml:"target"`
}

// DMARC publishes the _dmarc policy record
type DMARC struct {
	Value string `yaml:"value"`
	TTL   string `yaml:"ttl,omitempty"`
}

// Verification is a TXT ownership challenge
type Verification struct {
	Name   string   `yaml:"name"`
	Values []string `yaml:"values"`
	TTL    string   `yaml:"ttl,omitempty"`
}

// CNAME is a plain canonical-name record
type CNAME struct {
	Name   string `yaml:"name"`
	Target string `yaml:"target"`
	TTL    string `yaml:"ttl,omitempty"`
}

// Site is a static website: certificate, origin bucket, CDN distribution and
// alias records for every domain name
type Site struct {
	Key         string      `yaml:"key"`
	Comment     string      `yaml:"comment,omitempty"`
	DomainNames []string    `yaml:"domain_names"`
	Certificate Certificate `yaml:"certificate"`

	CachePolicy    string          `yaml:"cache_policy,omitempty"`
	ViewerRedirect bool            `yaml:"viewer_redirect,omitempty"`
	ErrorResponses []ErrorResponse `yaml:"error_responses,omitempty"`
	Bucket         Bucket          `yaml:"bucket,omitempty"`
	Content        *Content        `yaml:"content,omitempty"`

	PriceClass             string `yaml:"price_class,omitempty"`
	HTTPVersion            string `yaml:"http_version,omitempty"`
	MinimumProtocolVersion string `yaml:"minimum_protocol_version,omitempty"`
	IPv6                   *bool  `yaml:"ipv6,omitempty"`
}

// Certificate is a DNS-validated certificate request
type Certificate struct {
	DomainName       string   `yaml:"domain_name"`
	AlternativeNames []string `yaml:"alternative_names,omitempty"`
}

// ErrorResponse rewrites an origin error status
type ErrorResponse struct {
	HTTPStatus         int    `yaml:"http_status"`
	ResponseHTTPStatus int    `yaml:"response_http_status,omitempty"`
	ResponsePagePath   string `yaml:"response_page_path,omitempty"`
}

// Bucket holds the origin bucket policy flags
type Bucket struct {
	Encryption        string `yaml:"encryption,omitempty"`
	BlockPublicAccess *bool  `yaml:"block_public_access,omitempty"`
	EnforceSSL        *bool  `yaml:"enforce_ssl,omitempty"`
	Versioned         bool   `yaml:"versioned,omitempty"`
}

// Content is a local directory published into the origin bucket. Source is
// relative to the configuration file. With Prune set, objects missing from
// the source are removed from the bucket.
type Content struct {
	Source string `yaml:"source"`
	Prune  bool   `yaml:"prune,omitempty"`
}

// Defaults applied by Validate
const (
	DefaultService       = "route53"
	DefaultRegion        = "us-east-1"
	DefaultRetentionDays = 400

	CachePolicyDisabled  = "disabled"
	CachePolicyOptimized = "optimized"

	EncryptionS3Managed  = "s3_managed"
	EncryptionKMSManaged = "kms_managed"

	DefaultPriceClass             = "all"
	DefaultHTTPVersion            = "http2and3"
	DefaultMinimumProtocolVersion = "TLSv1.3_2025"
)

// ValidCachePolicies lists the supported distribution cache policies
var ValidCachePolicies = []string{CachePolicyDisabled, CachePolicyOptimized}

// ValidEncryptions lists the supported origin bucket encryption modes
var ValidEncryptions = []string{EncryptionS3Managed, EncryptionKMSManaged}

// ValidPriceClasses lists the supported distribution price classes
var ValidPriceClasses = []string{"all", "100", "200"}

// ValidHTTPVersions lists the supported distribution HTTP versions
var ValidHTTPVersions = []string{"http1.1", "http2", "http2and3", "http3"}

// ValidProtocolVersions lists the supported minimum viewer TLS policies
var ValidProtocolVersions = []string{"TLSv1.2_2018", "TLSv1.2_2019", "TLSv1.2_2021", "TLSv1.3_2025"}

// ValidRetentionDays lists the log retention periods the log service accepts
var ValidRetentionDays = []int{1, 3, 5, 7, 14, 30, 60, 90, 120, 150, 180, 365, 400, 545, 731, 1096, 1827, 2192, 2557, 2922, 3288, 3653}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// HasSites reports whether any domain declares a site.
func (c *DomainsConfig) HasSites() bool {
	for _, d := range c.Domains {
		if len(d.Sites) > 0 {
			return true
		}
	}
	return false
}

// QueryLoggingEnabled reports whether the domain has query logging switched on.
func (d *Domain) QueryLoggingEnabled() bool {
	return d.QueryLogging != nil && d.QueryLogging.Enabled
}

// IPv6Enabled reports whether the site's distribution serves IPv6.
func (s *Site) IPv6Enabled() bool {
	return s.IPv6 == nil || *s.IPv6
}
